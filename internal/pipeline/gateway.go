package pipeline

import (
	"context"
	"time"

	"github.com/nasteffe/tellus/internal/event"
)

// Gateway is the contract every external feed adapter must satisfy. Each
// FetchEvents call is independent: retries, backoff, and timeouts are the
// adapter's concern, and returned events must already carry network and
// layer tags. The orchestrating caller invokes Close after each run
// regardless of outcome.
type Gateway interface {
	Name() string
	FetchEvents(ctx context.Context, since time.Time) ([]event.Event, error)
	Close(ctx context.Context) error
}

// SourceError records one source's intake failure. It never aborts a run;
// the failing source simply contributes zero events.
type SourceError struct {
	Source string `json:"source"`
	Err    string `json:"error"`
}

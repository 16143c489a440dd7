package pipeline

import "fmt"

// UntaggedNetworkError reports an event that reached the tag stage with no
// network assignment. It is fatal to the whole batch.
type UntaggedNetworkError struct {
	EventID string
}

func (e *UntaggedNetworkError) Error() string {
	return fmt.Sprintf("event %s has no network assignment", e.EventID)
}

// UntaggedLayerError reports an event that reached the tag stage with no
// layer assignment. It is fatal to the whole batch.
type UntaggedLayerError struct {
	EventID string
}

func (e *UntaggedLayerError) Error() string {
	return fmt.Sprintf("event %s has no layer assignment", e.EventID)
}

package source

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nasteffe/tellus/internal/pipeline"
)

// File is the YAML source configuration: a list of adapters to enable,
// each with its credentials and optional overrides.
type File struct {
	Sources []Config `yaml:"sources"`
}

// Config configures a single adapter.
type Config struct {
	Type    string        `yaml:"type"`
	APIKey  string        `yaml:"api_key,omitempty"`
	BaseURL string        `yaml:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Load reads and parses a source configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse source config: %w", err)
	}
	for i, c := range f.Sources {
		if c.Type == "" {
			return nil, fmt.Errorf("source config entry %d: type is required", i)
		}
		// Keys can live in the environment instead of the file.
		if c.APIKey == "" {
			f.Sources[i].APIKey = os.Getenv(apiKeyEnv(c.Type))
		}
	}
	return &f, nil
}

// apiKeyEnv is the environment variable holding an adapter's API key when
// the config file omits it, e.g. TELLUS_ACLED_API_KEY.
func apiKeyEnv(sourceType string) string {
	return "TELLUS_" + strings.ToUpper(sourceType) + "_API_KEY"
}

// New builds one adapter from its configuration.
func New(c Config) (pipeline.Gateway, error) {
	switch c.Type {
	case "acled":
		return NewACLED(c), nil
	case "gfw":
		return NewGFW(c), nil
	case "idmc":
		return NewIDMC(c), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", c.Type)
	}
}

// Build constructs all configured adapters in file order. File order is
// registration order, so it also fixes the intake merge order.
func Build(f *File) ([]pipeline.Gateway, error) {
	gws := make([]pipeline.Gateway, 0, len(f.Sources))
	for _, c := range f.Sources {
		g, err := New(c)
		if err != nil {
			return nil, err
		}
		gws = append(gws, g)
	}
	return gws, nil
}

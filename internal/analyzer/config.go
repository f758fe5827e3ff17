package analyzer

import "time"

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
	DefaultModel    = "gemini-3-flash-preview"
	DefaultTimeout  = 30 * time.Second
)

// Config configures the generative-language Analyzer.
type Config struct {
	// Endpoint is the API base URL without a trailing slash.
	Endpoint string
	Model    string
	APIKey   string

	// Timeout bounds each call. Calls whose context already has an earlier
	// deadline keep it.
	Timeout time.Duration
}

// DefaultConfig returns a Config pointing at the public endpoint.
func DefaultConfig() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		Model:    DefaultModel,
		Timeout:  DefaultTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

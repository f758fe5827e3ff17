package webclient

import "time"

type Client string

const (
	ClientNetHTTP Client = "nethttp"
)

// Config is the minimal configuration required for constructing a WebClient.
type Config struct {
	Client Client

	// Timeout bounds a whole round trip; 0 means 30s.
	Timeout time.Duration

	// UserAgent is sent on every request when set.
	UserAgent string
}

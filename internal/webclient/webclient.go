package webclient

import "context"

// WebClient executes HTTP requests for the Analyzer transport.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}

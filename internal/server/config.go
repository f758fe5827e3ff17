package server

import "github.com/raysh454/cyra/internal/logging"

// DefaultMaxBodyBytes leaves room for a base64 screenshot.
const DefaultMaxBodyBytes = 16 << 20

type Config struct {
	// ListenAddr is the loopback address the bridge binds to.
	ListenAddr string

	// MaxBodyBytes caps request bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Logger defaults to a stdout logger named "Server".
	Logger logging.Logger
}

package analyzer

import (
	"context"
	"errors"
	"net"
)

// Sentinel errors of the scan error taxonomy. Implementations wrap one of
// these with %w so callers can classify failures with errors.Is or KindOf.
var (
	ErrNetwork    = errors.New("network error")
	ErrTimeout    = errors.New("analyzer timeout")
	ErrSchema     = errors.New("malformed analyzer response")
	ErrValidation = errors.New("invalid input")
)

// ErrorKind is the classification exposed on a failed scan.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindNetwork    ErrorKind = "network"
	KindTimeout    ErrorKind = "timeout"
	KindSchema     ErrorKind = "schema"
	KindValidation ErrorKind = "validation"
)

// KindOf classifies err. Context deadlines and net timeouts count as
// timeouts; anything unrecognised is treated as a network failure.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrSchema):
		return KindSchema
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

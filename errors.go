package gateway

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidArgument marks malformed, missing or out-of-range client input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrServiceUnavailable marks an unreachable upstream during health checks.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrBadGateway marks an upstream that could not be reached or answered with a non-2xx status.
	ErrBadGateway = errors.New("bad gateway")

	// ErrInternal marks an upstream answer that could not be used.
	ErrInternal = errors.New("internal error")

	// ErrNoReply is an error indicating a handler returned without replying.
	ErrNoReply = errors.New("empty reply")
)

// InvalidArgument returns an error marked as ErrInvalidArgument.
func InvalidArgument(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidArgument)
}

// ServiceUnavailable wraps cause with the given message and marks it as ErrServiceUnavailable.
func ServiceUnavailable(cause error, format string, args ...interface{}) error {
	return errors.Mark(wrap(cause, format, args...), ErrServiceUnavailable)
}

// BadGateway wraps cause with the given message and marks it as ErrBadGateway.
func BadGateway(cause error, format string, args ...interface{}) error {
	return errors.Mark(wrap(cause, format, args...), ErrBadGateway)
}

// Internal wraps cause with the given message and marks it as ErrInternal.
// cause may be nil.
func Internal(cause error, format string, args ...interface{}) error {
	return errors.Mark(wrap(cause, format, args...), ErrInternal)
}

func wrap(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.Newf(format, args...)
	}
	return errors.Wrapf(cause, format, args...)
}

// StatusOf maps an error to the status code reported to the caller.
// Unmarked errors are reported as server errors.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return StatusClientError
	case errors.Is(err, ErrServiceUnavailable):
		return StatusServiceUnavailable
	case errors.Is(err, ErrBadGateway):
		return StatusBadGateway
	default:
		return StatusServerError
	}
}

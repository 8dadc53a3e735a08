// Package apperr defines the engine's error taxonomy and its mapping to
// transport-level status codes. Services return these errors; the routing
// layer calls Map before putting them on the wire.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Sentinel errors for the engine taxonomy. Always wrap with the helpers
// below so errors.Is keeps working across layers.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrRateLimited = errors.New("rate limited")
	ErrValidation  = errors.New("validation failed")
	ErrTransient   = errors.New("transient failure")
)

// NotFound wraps ErrNotFound with a caller-facing message.
func NotFound(msg string) error { return fmt.Errorf("%w: %s", ErrNotFound, msg) }

// Conflict wraps ErrConflict with a caller-facing message.
func Conflict(msg string) error { return fmt.Errorf("%w: %s", ErrConflict, msg) }

// RateLimited wraps ErrRateLimited with a caller-facing message.
func RateLimited(msg string) error { return fmt.Errorf("%w: %s", ErrRateLimited, msg) }

// Invalid wraps ErrValidation with a caller-facing message.
func Invalid(msg string) error { return fmt.Errorf("%w: %s", ErrValidation, msg) }

// Transient wraps ErrTransient around an underlying I/O failure.
// Safe for callers to retry.
func Transient(err error) error { return fmt.Errorf("%w: %v", ErrTransient, err) }

// Map converts engine and infra errors into gRPC-friendly status errors.
// Keeps the service layer clean by centralizing the translation.
func Map(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, trim(err, ErrNotFound))

	case errors.Is(err, ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return status.Error(codes.AlreadyExists, trim(err, ErrConflict))

	case errors.Is(err, ErrRateLimited):
		return status.Error(codes.ResourceExhausted, trim(err, ErrRateLimited))

	case errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, trim(err, ErrValidation))

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	case errors.Is(err, ErrTransient):
		return status.Error(codes.Unavailable, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// trim strips the "<sentinel>: " prefix so wire messages stay readable.
func trim(err error, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

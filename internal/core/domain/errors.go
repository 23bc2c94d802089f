package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")

	// ErrImageUnreadable marks a capture whose image reference does not
	// resolve to a decodable image.
	ErrImageUnreadable = errors.New("image unreadable")

	// ErrServiceUnavailable marks transport-level failures against the
	// inference backend, distinguishable from malformed model output so the
	// caller can surface a retryable error instead of persisting a blank
	// transcription.
	ErrServiceUnavailable = errors.New("inference service unavailable")

	// ErrExtractionFailed covers OCR/vision failures that are neither an
	// unreadable image nor an unreachable backend.
	ErrExtractionFailed = errors.New("extraction failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

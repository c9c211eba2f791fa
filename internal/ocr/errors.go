package ocr

import (
	"errors"
	"fmt"
)

// Common OCR errors
var (
	// ErrRecognitionFailed is returned when the backend fails to recognize an image.
	ErrRecognitionFailed = errors.New("OCR recognition failed")

	// ErrEngineTerminated is returned by calls made after Terminate.
	ErrEngineTerminated = errors.New("OCR engine has been terminated")

	// ErrInvalidImage is returned when the image cannot be read or decoded.
	ErrInvalidImage = errors.New("invalid or unreadable image")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrEmptyDocument is returned when the backend finds no text at all.
	ErrEmptyDocument = errors.New("image contains no readable text")

	// ErrInvalidPoolSize is returned when the engine is configured without workers.
	ErrInvalidPoolSize = errors.New("OCR pool size must be positive")
)

// RecognitionError wraps errors with additional context about an OCR failure.
type RecognitionError struct {
	// Op is the operation that failed (e.g., "Recognize", "Initialize").
	Op string

	// Path is the image being recognized, if any.
	Path string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *RecognitionError) Error() string {
	msg := fmt.Sprintf("ocr: %s failed", e.Op)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %v", msg, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *RecognitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapRecognitionError wraps an error as a RecognitionError if it isn't already one.
func WrapRecognitionError(op, path string, err error, details string) error {
	if err == nil {
		return nil
	}

	var recErr *RecognitionError
	if errors.As(err, &recErr) {
		return err // Already wrapped
	}

	return &RecognitionError{Op: op, Path: path, Err: err, Details: details}
}

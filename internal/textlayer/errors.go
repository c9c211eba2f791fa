package textlayer

import (
	"errors"
	"fmt"
)

// Common text layer errors
var (
	// ErrInvalidPDF is returned when the file is not a readable PDF.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF")

	// ErrExtractionFailed is returned when the provider could not produce text.
	ErrExtractionFailed = errors.New("text layer extraction failed")

	// ErrDocumentTooLarge is returned when the PDF exceeds the provider limit.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")

	// ErrInvalidConfiguration is returned when a provider is misconfigured.
	ErrInvalidConfiguration = errors.New("invalid text layer configuration")

	// ErrMissingCredentials is returned when Google Cloud credentials are missing.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials")

	// ErrInvalidCredentials is returned when credentials lack permissions.
	ErrInvalidCredentials = errors.New("invalid or insufficient credentials")

	// ErrQuotaExceeded is returned when the API quota is exhausted.
	ErrQuotaExceeded = errors.New("API quota exceeded")

	// ErrProcessorNotFound is returned when the Document AI processor does not exist.
	ErrProcessorNotFound = errors.New("document processor not found")

	// ErrContextCanceled is returned when the request was canceled.
	ErrContextCanceled = errors.New("operation canceled")
)

// ProviderError adds the provider and operation to a text layer failure.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
	Details  string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("textlayer %s: %s failed: %s: %v", e.Provider, e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("textlayer %s: %s failed: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapProviderError wraps an error as a ProviderError if it isn't already one.
func WrapProviderError(provider, op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return err
	}

	return &ProviderError{Provider: provider, Op: op, Err: err, Details: details}
}

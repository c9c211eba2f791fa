package extraction

import (
	"errors"
	"fmt"

	"notaria/internal/ocr"
	"notaria/internal/preprocess"
	"notaria/internal/textlayer"
)

// Input errors
var (
	// ErrFileNotFound is returned when the input path does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrEmptyFile is returned for zero-byte inputs.
	ErrEmptyFile = errors.New("file is empty")

	// ErrFileTooLarge is returned when the input exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrUnreadableImage is returned when an image has no decodable header.
	ErrUnreadableImage = errors.New("unreadable image")

	// ErrNoTextContent is returned when a PDF text layer is empty.
	ErrNoTextContent = errors.New("No text content found in PDF")

	// ErrNoTextRecognized is returned when OCR finds no text in any variant.
	ErrNoTextRecognized = errors.New("No text recognized in image")

	// ErrInvalidPDF is returned when the input is not a PDF file.
	ErrInvalidPDF = errors.New("invalid PDF document")
)

// ErrUnsupportedType is returned when no extractor handles a document type.
var ErrUnsupportedType = errors.New("unsupported document type")

// Kind classifies an extraction failure.
type Kind string

const (
	KindInput           Kind = "input"
	KindUnsupportedType Kind = "unsupported_type"
	KindRecognition     Kind = "recognition"
	KindPreprocessing   Kind = "preprocessing"
	KindInternal        Kind = "internal"
)

// ExtractionError wraps errors with the operation and the input they concern.
type ExtractionError struct {
	// Op is the operation that failed (e.g., "Extract", "ValidateInput").
	Op string

	// Path is the input file, if any.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("extraction: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("extraction: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapExtractionError wraps an error as an ExtractionError if it isn't already one.
func WrapExtractionError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return err // Already wrapped
	}

	return &ExtractionError{Op: op, Path: path, Err: err}
}

// KindOf maps an error onto the failure taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedType):
		return KindUnsupportedType
	case errors.Is(err, ErrFileNotFound), errors.Is(err, ErrEmptyFile), errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrUnreadableImage), errors.Is(err, ErrNoTextContent), errors.Is(err, ErrNoTextRecognized),
		errors.Is(err, ErrInvalidPDF), errors.Is(err, textlayer.ErrInvalidPDF), errors.Is(err, preprocess.ErrUnreadableImage):
		return KindInput
	case errors.Is(err, preprocess.ErrVariantFailed), errors.Is(err, preprocess.ErrNoUsableVariant):
		return KindPreprocessing
	case errors.Is(err, ocr.ErrRecognitionFailed), errors.Is(err, ocr.ErrEngineTerminated), errors.Is(err, ocr.ErrInvalidImage):
		return KindRecognition
	default:
		return KindInternal
	}
}

// Message is the text reported in a failed result. Input errors with a fixed
// wording keep it verbatim; anything else reports the full chain.
func Message(err error) string {
	for _, fixed := range []error{ErrNoTextContent, ErrNoTextRecognized} {
		if errors.Is(err, fixed) {
			return fixed.Error()
		}
	}
	return err.Error()
}

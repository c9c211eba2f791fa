package preprocess

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadableImage is returned when the source image cannot be decoded.
	ErrUnreadableImage = errors.New("unreadable image")

	// ErrVariantFailed marks a single variant that could not be built or recognized.
	ErrVariantFailed = errors.New("image variant failed")

	// ErrNoUsableVariant is returned when every variant failed.
	ErrNoUsableVariant = errors.New("no image variant could be recognized")
)

// VariantError describes the failure of one variant. It never aborts the
// other variants of the same image.
type VariantError struct {
	Variant Variant
	Stage   string // "build", "save" or "recognize"
	Err     error
}

func (e *VariantError) Error() string {
	return fmt.Sprintf("variant %s: %s: %v", e.Variant, e.Stage, e.Err)
}

func (e *VariantError) Unwrap() []error {
	return []error{ErrVariantFailed, e.Err}
}

// Package ocr provides a bounded pool of OCR workers with a TTL result cache.
//
// Each worker wraps one Backend instance (Tesseract through gosseract, or
// Google Cloud Vision). A worker is either idle or busy; callers never hold
// more than PoolSize workers at once and every acquired worker is released
// when the call returns, including on error.
//
// Tesseract backend:
//   - Requires the tesseract library and the "spa" traineddata installed
//   - Configured per call with language, character whitelist, DPI and page
//     segmentation mode
//
// Google Cloud Vision backend:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - Uses DOCUMENT_TEXT_DETECTION on the raw image bytes
//
// Results are cached by image path, file size, modification time and the
// normalized recognition options. Cached results are shared and must be
// treated as read-only.
package ocr

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Backend is one opaque recognizer owned by a single worker.
// Implementations are not required to be safe for concurrent use.
type Backend interface {
	// Recognize runs OCR on the image at path with the given options.
	Recognize(ctx context.Context, path string, opts Options) (*Result, error)

	// Close releases the backend's resources.
	Close() error
}

// BackendFactory creates the backend of one worker.
type BackendFactory func(ctx context.Context, defaults Options) (Backend, error)

// Options tune a recognition call. Zero values fall back to the engine defaults.
type Options struct {
	// Language is a tesseract language code, e.g. "spa" or "spa+eng".
	Language string `json:"language,omitempty"`

	// Whitelist restricts the recognized character set.
	Whitelist string `json:"whitelist,omitempty"`

	// DPI is the resolution assumed for the input image.
	DPI int `json:"dpi,omitempty"`

	// PageSegMode is the tesseract page segmentation mode.
	PageSegMode int `json:"page_seg_mode,omitempty"`

	// Variables are extra backend parameters applied for this call only.
	Variables map[string]string `json:"variables,omitempty"`
}

// merge fills unset fields of o from defaults.
func (o Options) merge(defaults Options) Options {
	out := o
	if out.Language == "" {
		out.Language = defaults.Language
	}
	if out.Whitelist == "" {
		out.Whitelist = defaults.Whitelist
	}
	if out.DPI == 0 {
		out.DPI = defaults.DPI
	}
	if out.PageSegMode == 0 {
		out.PageSegMode = defaults.PageSegMode
	}
	if len(defaults.Variables) > 0 {
		vars := make(map[string]string, len(defaults.Variables)+len(o.Variables))
		for k, v := range defaults.Variables {
			vars[k] = v
		}
		for k, v := range o.Variables {
			vars[k] = v
		}
		out.Variables = vars
	}
	return out
}

// normalized renders options in a stable form for cache keys.
func (o Options) normalized() string {
	var b strings.Builder
	b.WriteString("lang=" + strings.ToLower(strings.TrimSpace(o.Language)))
	b.WriteString("|wl=" + o.Whitelist)
	b.WriteString("|dpi=" + strconv.Itoa(o.DPI))
	b.WriteString("|psm=" + strconv.Itoa(o.PageSegMode))
	keys := make([]string, 0, len(o.Variables))
	for k := range o.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("|" + k + "=" + o.Variables[k])
	}
	return b.String()
}

// BBox is a pixel rectangle in image coordinates.
type BBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Word is a recognized word with its confidence in [0,1].
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Line is a recognized text line.
type Line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Paragraph is a recognized paragraph.
type Paragraph struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Result contains the output of one recognition.
type Result struct {
	// Text is the full recognized text in reading order.
	Text string `json:"text"`

	// Confidence is the mean word confidence (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	Words      []Word      `json:"words,omitempty"`
	Lines      []Line      `json:"lines,omitempty"`
	Paragraphs []Paragraph `json:"paragraphs,omitempty"`

	// Backend names the recognizer that produced the result.
	Backend string `json:"backend"`

	// ProcessingDuration is how long the backend call took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// meanWordConfidence averages word confidences, 0 when there are none.
func meanWordConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

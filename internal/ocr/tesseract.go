package ocr

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// TesseractBackend recognizes images with a dedicated gosseract client.
// One client belongs to exactly one worker.
type TesseractBackend struct {
	client  *gosseract.Client
	applied string // normalized options the client is currently set up with
}

// NewTesseractBackend creates a client configured with the engine defaults.
func NewTesseractBackend(ctx context.Context, defaults Options) (Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := &TesseractBackend{client: gosseract.NewClient()}
	if err := t.configure(defaults); err != nil {
		t.client.Close()
		return nil, WrapRecognitionError("NewTesseractBackend", "", err, "failed to configure tesseract")
	}
	return t, nil
}

// configure applies opts only when they differ from the last call, since any
// change forces tesseract to reinitialize.
func (t *TesseractBackend) configure(opts Options) error {
	key := opts.normalized()
	if key == t.applied {
		return nil
	}

	c := t.client
	for k := range c.Variables {
		delete(c.Variables, k)
	}

	langs := strings.Split(opts.Language, "+")
	if err := c.SetLanguage(langs...); err != nil {
		return fmt.Errorf("set languages: %w", err)
	}
	if opts.Whitelist != "" {
		if err := c.SetWhitelist(opts.Whitelist); err != nil {
			return fmt.Errorf("set whitelist: %w", err)
		}
	}
	if opts.PageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
			return fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if opts.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(opts.DPI)); err != nil {
			return fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetVariable(gosseract.SettableVariable("preserve_interword_spaces"), "1"); err != nil {
		return fmt.Errorf("set interword spaces: %w", err)
	}
	for k, v := range opts.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	t.applied = key
	return nil
}

// Recognize runs tesseract on the image at path.
func (t *TesseractBackend) Recognize(ctx context.Context, path string, opts Options) (*Result, error) {
	const op = "TesseractBackend.Recognize"
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.configure(opts); err != nil {
		t.applied = ""
		return nil, WrapRecognitionError(op, path, ErrRecognitionFailed, err.Error())
	}
	if err := t.client.SetImage(path); err != nil {
		return nil, WrapRecognitionError(op, path, ErrInvalidImage, err.Error())
	}

	text, err := t.client.Text()
	if err != nil {
		return nil, WrapRecognitionError(op, path, ErrRecognitionFailed, err.Error())
	}

	result := &Result{Text: text, Backend: "tesseract"}
	for _, b := range t.boxes(gosseract.RIL_WORD) {
		result.Words = append(result.Words, Word{Text: b.Word, Confidence: b.Confidence / 100.0, BBox: bboxFromRect(b.Box)})
	}
	for _, b := range t.boxes(gosseract.RIL_TEXTLINE) {
		result.Lines = append(result.Lines, Line{Text: strings.TrimSpace(b.Word), Confidence: b.Confidence / 100.0, BBox: bboxFromRect(b.Box)})
	}
	for _, b := range t.boxes(gosseract.RIL_PARA) {
		result.Paragraphs = append(result.Paragraphs, Paragraph{Text: strings.TrimSpace(b.Word), Confidence: b.Confidence / 100.0, BBox: bboxFromRect(b.Box)})
	}
	result.Confidence = meanWordConfidence(result.Words)
	result.ProcessingDuration = time.Since(startTime)

	return result, nil
}

// boxes returns nil when the level is unavailable; layout is best effort.
func (t *TesseractBackend) boxes(level gosseract.PageIteratorLevel) []gosseract.BoundingBox {
	boxes, err := t.client.GetBoundingBoxes(level)
	if err != nil {
		return nil
	}
	return boxes
}

func bboxFromRect(r image.Rectangle) BBox {
	return BBox{X0: r.Min.X, Y0: r.Min.Y, X1: r.Max.X, Y1: r.Max.Y}
}

// Close releases the tesseract client.
func (t *TesseractBackend) Close() error {
	return t.client.Close()
}

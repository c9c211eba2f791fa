package textlayer

import (
	"context"
	"strings"

	"notaria/internal/logger"
)

// PdftotextProvider shells out to poppler's pdftotext.
type PdftotextProvider struct {
	bin    string
	runner Runner
}

// NewPdftotextProvider uses bin (default "pdftotext") through runner; a nil
// runner executes the real command.
func NewPdftotextProvider(bin string, runner Runner) *PdftotextProvider {
	if bin == "" {
		bin = "pdftotext"
	}
	if runner == nil {
		runner = execRunner{log: logger.WithComponent("pdftotext")}
	}
	return &PdftotextProvider{bin: bin, runner: runner}
}

// Name returns "pdftotext".
func (p *PdftotextProvider) Name() string { return ProviderPdftotext }

// ExtractText runs `pdftotext -layout -enc UTF-8 -eol unix <path> -`.
func (p *PdftotextProvider) ExtractText(ctx context.Context, path string) (*Document, error) {
	out, errb, err := p.runner.Run(ctx, p.bin, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		details := strings.TrimSpace(string(errb))
		if strings.Contains(details, "Syntax Error") || strings.Contains(details, "May not be a PDF") {
			return nil, WrapProviderError(ProviderPdftotext, "ExtractText", ErrInvalidPDF, details)
		}
		return nil, WrapProviderError(ProviderPdftotext, "ExtractText", ErrExtractionFailed, details)
	}

	text := string(out)
	// A form-feed \f is used as page separator; a trailing one closes the last page
	pages := strings.Count(strings.TrimRight(text, "\n"), "\f")
	if !strings.HasSuffix(strings.TrimRight(text, "\n"), "\f") {
		pages++
	}

	doc := &Document{Text: text, Pages: pages, Provider: ProviderPdftotext}
	if len(errb) > 0 {
		doc.Warnings = append(doc.Warnings, strings.TrimSpace(string(errb)))
	}
	return doc, nil
}

// Close is a no-op.
func (p *PdftotextProvider) Close() error { return nil }

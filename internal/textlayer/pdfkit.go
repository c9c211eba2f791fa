package textlayer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/wudi/pdfkit/extractor"
	"github.com/wudi/pdfkit/filters"
	"github.com/wudi/pdfkit/ir/decoded"
	"github.com/wudi/pdfkit/parser"
)

// PdfkitProvider reads the text layer in process with pdfkit. It needs no
// external binary or credentials.
type PdfkitProvider struct{}

// NewPdfkitProvider creates the in-process provider.
func NewPdfkitProvider() *PdfkitProvider {
	return &PdfkitProvider{}
}

// Name returns "pdfkit".
func (p *PdfkitProvider) Name() string { return ProviderPdfkit }

// ExtractText decodes every page and joins their text with form feeds, the
// same page separator pdftotext uses.
func (p *PdfkitProvider) ExtractText(ctx context.Context, path string) (*Document, error) {
	parsed, err := openPDF(ctx, path)
	if err != nil {
		return nil, WrapProviderError(ProviderPdfkit, "ExtractText", err, "")
	}

	pages, err := parsed.ext.ExtractText()
	if err != nil {
		return nil, WrapProviderError(ProviderPdfkit, "ExtractText", ErrExtractionFailed, err.Error())
	}

	contents := make([]string, 0, len(pages))
	for _, page := range pages {
		contents = append(contents, page.Content)
	}
	doc := &Document{
		Text:     strings.Join(contents, "\f"),
		Pages:    parsed.pages,
		Provider: ProviderPdfkit,
	}
	if parsed.pages > len(pages) {
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("%d of %d pages have no text layer", parsed.pages-len(pages), parsed.pages))
	}
	return doc, nil
}

// Close is a no-op.
func (p *PdfkitProvider) Close() error { return nil }

// CountPages returns the number of pages in the PDF page tree, including
// page objects stored in compressed object streams.
func CountPages(path string) (int, error) {
	parsed, err := openPDF(context.Background(), path)
	if err != nil {
		return 0, err
	}
	return parsed.pages, nil
}

type parsedPDF struct {
	ext   *extractor.Extractor
	pages int
}

func openPDF(ctx context.Context, path string) (*parsedPDF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, fmt.Errorf("%w: missing PDF header", ErrInvalidPDF)
	}

	rawDoc, err := parser.NewDocumentParser(parser.Config{}).Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	dec, err := decoded.NewDecoder(streamFilters()).Decode(ctx, rawDoc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	ext, err := extractor.New(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	pages := ext.ExtractMetadata().PageCount
	if pages == 0 {
		// New walks the page tree before it inflates object streams, so a
		// tree stored in one only shows up on a second pass.
		if again, err := extractor.New(dec); err == nil {
			ext = again
			pages = ext.ExtractMetadata().PageCount
		}
	}
	return &parsedPDF{ext: ext, pages: pages}, nil
}

// The semantic layer of pdfkit prints parse warnings to stdout, so only the
// raw and decoded layers are used here.
func streamFilters() *filters.Pipeline {
	return filters.NewPipeline(
		[]filters.Decoder{
			filters.NewFlateDecoder(),
			filters.NewLZWDecoder(),
			filters.NewASCII85Decoder(),
			filters.NewASCIIHexDecoder(),
		},
		filters.Limits{},
	)
}

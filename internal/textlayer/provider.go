// Package textlayer turns a PDF file into plain text. Text comes from pdfkit
// in process, from pdftotext or from Document AI.
package textlayer

import (
	"context"
	"fmt"
)

// Provider names
const (
	ProviderPdfkit     = "pdfkit"
	ProviderPdftotext  = "pdftotext"
	ProviderDocumentAI = "documentai"
)

// Document is the text layer of one PDF.
type Document struct {
	Text     string
	Pages    int
	Provider string
	Warnings []string
}

// Provider extracts the text layer of a PDF file.
type Provider interface {
	Name() string
	ExtractText(ctx context.Context, path string) (*Document, error)
	Close() error
}

// Options select and configure a provider.
type Options struct {
	Backend       string
	PdftotextPath string
	DocumentAI    DocumentAIConfig
}

// New builds the provider named by opts.Backend.
func New(ctx context.Context, opts Options) (Provider, error) {
	switch opts.Backend {
	case "", ProviderPdfkit:
		return NewPdfkitProvider(), nil
	case ProviderPdftotext:
		return NewPdftotextProvider(opts.PdftotextPath, nil), nil
	case ProviderDocumentAI:
		return NewDocumentAIProvider(ctx, opts.DocumentAI)
	default:
		return nil, WrapProviderError(opts.Backend, "New", ErrInvalidConfiguration, fmt.Sprintf("unknown backend %q", opts.Backend))
	}
}

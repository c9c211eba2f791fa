package textlayer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"notaria/internal/logger"
)

// MaxDocumentSizeBytes is the online processing limit of Document AI (20MB).
const MaxDocumentSizeBytes = 20 * 1024 * 1024

// DocumentAIConfig identifies the OCR processor to call.
type DocumentAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration
}

// DocumentAIProvider reads the text layer through a Document AI OCR processor.
type DocumentAIProvider struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIProvider creates a provider with credentials from environment.
// Expects: GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS
func NewDocumentAIProvider(ctx context.Context, config DocumentAIConfig) (*DocumentAIProvider, error) {
	const op = "NewDocumentAIProvider"

	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, WrapProviderError(ProviderDocumentAI, op, ErrInvalidConfiguration, "project and processor id are required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	var clientOptions []option.ClientOption

	// Set regional endpoint if not us
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapProviderError(ProviderDocumentAI, op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapProviderError(ProviderDocumentAI, op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return NewDocumentAIProviderWithClient(config, client), nil
}

// NewDocumentAIProviderWithClient creates a provider with an explicit client (for testing).
func NewDocumentAIProviderWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIProvider {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &DocumentAIProvider{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

// Name returns "documentai".
func (p *DocumentAIProvider) Name() string { return ProviderDocumentAI }

// ExtractText sends the raw PDF to the processor and returns Document.Text.
func (p *DocumentAIProvider) ExtractText(ctx context.Context, path string) (*Document, error) {
	const op = "ExtractText"

	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapProviderError(ProviderDocumentAI, op, err, "failed to read PDF")
	}
	if len(pdfBytes) > MaxDocumentSizeBytes {
		return nil, WrapProviderError(ProviderDocumentAI, op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(pdfBytes)))
	}
	if len(pdfBytes) < 4 || string(pdfBytes[:4]) != "%PDF" {
		return nil, WrapProviderError(ProviderDocumentAI, op, ErrInvalidPDF, "missing PDF header")
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdfBytes,
				MimeType: "application/pdf",
			},
		},
	}

	start := time.Now()
	resp, err := p.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, p.handleProcessingError(op, err)
	}
	if resp.Document == nil {
		return nil, WrapProviderError(ProviderDocumentAI, op, ErrExtractionFailed, "no document in response")
	}

	p.log.Debug().
		Str("path", path).
		Int("pages", len(resp.Document.Pages)).
		Dur("elapsed", time.Since(start)).
		Msg("document processed")

	return &Document{
		Text:     resp.Document.Text,
		Pages:    len(resp.Document.Pages),
		Provider: ProviderDocumentAI,
	}, nil
}

// processorName constructs the full processor resource name.
func (p *DocumentAIProvider) processorName() string {
	if p.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			p.config.ProjectID, p.config.Location, p.config.ProcessorID, p.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// handleProcessingError converts Document AI errors to text layer errors.
func (p *DocumentAIProvider) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED") || strings.Contains(errStr, "PermissionDenied"):
		return WrapProviderError(ProviderDocumentAI, op, ErrInvalidCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "ResourceExhausted"):
		return WrapProviderError(ProviderDocumentAI, op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case strings.Contains(errStr, "NOT_FOUND") || strings.Contains(errStr, "NotFound"):
		return WrapProviderError(ProviderDocumentAI, op, ErrProcessorNotFound, fmt.Sprintf("processor not found: %s", p.config.ProcessorID))
	case strings.Contains(errStr, "INVALID_ARGUMENT") || strings.Contains(errStr, "InvalidArgument"):
		return WrapProviderError(ProviderDocumentAI, op, ErrInvalidPDF, "document format not supported or corrupted")
	case strings.Contains(errStr, "DeadlineExceeded") || strings.Contains(errStr, "context deadline exceeded"):
		return WrapProviderError(ProviderDocumentAI, op, context.DeadlineExceeded, "processing timeout")
	case strings.Contains(errStr, "Canceled") || strings.Contains(errStr, "context canceled"):
		return WrapProviderError(ProviderDocumentAI, op, ErrContextCanceled, "processing was canceled")
	default:
		return WrapProviderError(ProviderDocumentAI, op, ErrExtractionFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// Close closes the underlying client.
func (p *DocumentAIProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

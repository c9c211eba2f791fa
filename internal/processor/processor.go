// Package processor is the entry point of the extraction core. It validates
// input files, resolves their document type and routes them to the extractor
// registered for that type. Every call yields exactly one ExtractionResult.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"notaria/internal/detect"
	"notaria/internal/extraction"
	"notaria/internal/logger"
	"notaria/pkg/models"
)

// Config holds the dispatcher limits.
type Config struct {
	// MaxFileSize is the largest accepted input in bytes.
	MaxFileSize int64
	// Concurrency bounds the documents processed at once by ProcessMultipleDocuments.
	Concurrency int
	// BatchDelay is the pause between two batches.
	BatchDelay time.Duration
	// MinConfidence applies when a call does not set one.
	MinConfidence float64
}

// DefaultConfig returns a 50MB limit and batches of three.
func DefaultConfig() Config {
	return Config{
		MaxFileSize: 50 * 1024 * 1024,
		Concurrency: 3,
		BatchDelay:  100 * time.Millisecond,
	}
}

// DocumentProcessor dispatches documents to extractors. The registry is
// fixed at construction.
type DocumentProcessor struct {
	cfg        Config
	detector   *detect.Detector
	extractors map[models.DocumentType]extraction.Extractor
	closers    []io.Closer
}

// New builds a processor. Each known document type is bound to the first
// extractor that supports it.
func New(cfg Config, detector *detect.Detector, extractors ...extraction.Extractor) *DocumentProcessor {
	def := DefaultConfig()
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = def.MaxFileSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if detector == nil {
		detector = detect.New(detect.DefaultConfig())
	}

	registry := make(map[models.DocumentType]extraction.Extractor, len(models.DocumentTypes))
	for _, t := range models.DocumentTypes {
		for _, e := range extractors {
			if e.Supports(t) {
				registry[t] = e
				break
			}
		}
	}

	return &DocumentProcessor{
		cfg:        cfg,
		detector:   detector,
		extractors: registry,
	}
}

// SupportedTypes lists the document types with a registered extractor.
func (p *DocumentProcessor) SupportedTypes() []models.DocumentType {
	var out []models.DocumentType
	for _, t := range models.DocumentTypes {
		if _, ok := p.extractors[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// ProcessDocument extracts the document at path. It never panics and never
// returns an error: every failure is reported as a failed result.
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, path string, opts models.ProcessingOptions) (res models.ExtractionResult) {
	started := time.Now()
	requestID := uuid.NewString()
	log := logger.WithRequestID("processor", requestID)
	docType := detect.DefaultDocumentType

	defer func() {
		if v := recover(); v != nil {
			log.Error().Interface("panic", v).Str("path", path).Msg("processing panicked")
			res = models.FailedResult(docType, models.TramiteOtro, "internal error during processing", started)
		}
		p.stamp(&res, path, docType, requestID)
	}()

	if err := p.validateFile(path); err != nil {
		return p.failed(log, docType, path, err, started)
	}

	if opts.ForceDocumentType != "" {
		if !opts.ForceDocumentType.Valid() {
			return p.failed(log, docType, path, fmt.Errorf("%w: %s", extraction.ErrUnsupportedType, opts.ForceDocumentType), started)
		}
		docType = opts.ForceDocumentType
	} else {
		docType = p.detector.DocumentType(path)
	}
	if opts.MinConfidence == 0 {
		opts.MinConfidence = p.cfg.MinConfidence
	}

	ext, ok := p.extractors[docType]
	if !ok || !ext.Supports(docType) {
		return p.failed(log, docType, path, fmt.Errorf("%w: %s", extraction.ErrUnsupportedType, docType), started)
	}
	if err := ext.ValidateInput(path); err != nil {
		return p.failed(log, docType, path, err, started)
	}

	log.Debug().
		Str("path", path).
		Str("document_type", string(docType)).
		Str("extractor", ext.Name()).
		Msg("dispatching document")

	res = ext.Extract(ctx, path, opts)
	if meta, err := ext.Metadata(path); err == nil {
		applyMetadata(&res.Metadata, meta)
	} else {
		log.Warn().Err(err).Str("path", path).Msg("could not read document metadata")
	}
	if res.Metadata.Extractor == "" {
		res.Metadata.Extractor = ext.Name()
	}

	log.Info().
		Str("file", filepath.Base(path)).
		Str("document_type", string(res.DocumentType)).
		Str("tramite", string(res.TramiteType)).
		Bool("success", res.Success).
		Int("fields", len(res.Fields)).
		Float64("confidence", res.Confidence).
		Int64("processing_ms", res.ProcessingTimeMs).
		Msg("document processed")
	return res
}

// ProcessMultipleDocuments processes paths in batches of at most concurrency
// documents, pausing between batches. Results are in input order. A
// non-positive concurrency uses the configured one.
func (p *DocumentProcessor) ProcessMultipleDocuments(ctx context.Context, paths []string, opts models.ProcessingOptions, concurrency int) []models.ExtractionResult {
	if concurrency <= 0 {
		concurrency = p.cfg.Concurrency
	}
	results := make([]models.ExtractionResult, len(paths))

	for start := 0; start < len(paths); start += concurrency {
		end := min(start+concurrency, len(paths))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = p.ProcessDocument(ctx, paths[i], opts)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(paths) && p.cfg.BatchDelay > 0 {
			timer := time.NewTimer(p.cfg.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}
	return results
}

// Close releases resources owned by the processor, such as text layer clients.
func (p *DocumentProcessor) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// validateFile checks existence, type and size.
func (p *DocumentProcessor) validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return extraction.WrapExtractionError("ProcessDocument", path, extraction.ErrFileNotFound)
		}
		return extraction.WrapExtractionError("ProcessDocument", path, err)
	}
	if info.IsDir() {
		return extraction.WrapExtractionError("ProcessDocument", path, fmt.Errorf("%w: path is a directory", extraction.ErrFileNotFound))
	}
	if info.Size() == 0 {
		return extraction.WrapExtractionError("ProcessDocument", path, extraction.ErrEmptyFile)
	}
	if info.Size() > p.cfg.MaxFileSize {
		return extraction.WrapExtractionError("ProcessDocument", path,
			fmt.Errorf("%w: %d bytes, limit %d", extraction.ErrFileTooLarge, info.Size(), p.cfg.MaxFileSize))
	}
	return nil
}

func (p *DocumentProcessor) failed(log zerolog.Logger, docType models.DocumentType, path string, err error, started time.Time) models.ExtractionResult {
	log.Warn().Err(err).Str("path", path).Str("kind", string(extraction.KindOf(err))).Msg("document rejected")
	return models.FailedResult(docType, detect.TramiteType(path, docType), extraction.Message(err), started)
}

// stamp adds the dispatcher metadata and enforces the failed result shape.
func (p *DocumentProcessor) stamp(res *models.ExtractionResult, path string, docType models.DocumentType, requestID string) {
	res.Metadata.RequestID = requestID
	res.Metadata.FileName = filepath.Base(path)
	if res.Metadata.DetectedType == "" {
		res.Metadata.DetectedType = docType
	}
	res.Metadata.ProcessedAt = time.Now()
	if res.DocumentType == "" {
		res.DocumentType = docType
	}
	if res.TramiteType == "" {
		res.TramiteType = models.TramiteOtro
	}
	if !res.Success {
		res.Confidence = 0
		res.Fields = []models.ExtractedField{}
	}
	if res.Fields == nil {
		res.Fields = []models.ExtractedField{}
	}
}

func applyMetadata(dst *models.ResultMetadata, meta models.DocumentMetadata) {
	dst.FileSize = meta.FileSize
	dst.MimeType = meta.MimeType
	if dst.PageCount == 0 {
		dst.PageCount = meta.PageCount
	}
	if dst.Dimensions == nil {
		dst.Dimensions = meta.Dimensions
	}
}

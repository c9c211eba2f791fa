// Package extraction turns one input file into an ExtractionResult. Each
// Extractor handles a set of document types; none of them returns an error or
// panics out of Extract, every failure becomes a failed result.
package extraction

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"notaria/internal/patterns"
	"notaria/pkg/models"
)

// Extractor is the capability set the dispatcher routes to.
type Extractor interface {
	// Name identifies the extractor in result metadata.
	Name() string

	// Supports reports whether the extractor handles documents of type t.
	Supports(t models.DocumentType) bool

	// ValidateInput checks that path can be processed by this extractor.
	ValidateInput(path string) error

	// Metadata snapshots the input file.
	Metadata(path string) (models.DocumentMetadata, error)

	// Extract runs the full extraction. It never panics and never fails
	// outside of the returned result.
	Extract(ctx context.Context, path string, opts models.ProcessingOptions) models.ExtractionResult
}

// fileMetadata stats path and fills the fields common to every input.
func fileMetadata(path string) (models.DocumentMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.DocumentMetadata{}, WrapExtractionError("Metadata", path, ErrFileNotFound)
		}
		return models.DocumentMetadata{}, WrapExtractionError("Metadata", path, err)
	}
	return models.DocumentMetadata{
		FileName: filepath.Base(path),
		FileSize: info.Size(),
		MimeType: mimeType(path),
	}, nil
}

func mimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

// finish deduplicates, filters and scores the fields and assembles a
// successful result.
func finish(lib *patterns.Library, docType models.DocumentType, tramite models.TramiteType, fields []models.ExtractedField,
	opts models.ProcessingOptions, started time.Time) models.ExtractionResult {
	fields = patterns.Deduplicate(fields)
	fields = patterns.FilterMinConfidence(fields, opts.MinConfidence)

	return models.ExtractionResult{
		DocumentType:     docType,
		TramiteType:      tramite,
		Fields:           fields,
		StructuredData:   BuildStructuredData(fields, lib.Window()),
		Confidence:       lib.OverallConfidence(fields),
		ProcessingTimeMs: time.Since(started).Milliseconds(),
		Success:          true,
		Metadata:         models.ResultMetadata{ProcessedAt: time.Now()},
	}
}

// fail logs err and converts it into a failed result.
func fail(log zerolog.Logger, docType models.DocumentType, tramite models.TramiteType, path string, err error,
	started time.Time) models.ExtractionResult {
	log.Error().Err(err).Str("path", path).Str("kind", string(KindOf(err))).Msg("extraction failed")
	return models.FailedResult(docType, tramite, Message(err), started)
}

// recovered converts a recovered panic value into a failed result.
func recovered(log zerolog.Logger, docType models.DocumentType, tramite models.TramiteType, path string, v any,
	started time.Time) models.ExtractionResult {
	log.Error().Interface("panic", v).Str("path", path).Msg("extraction panicked")
	return models.FailedResult(docType, tramite, "internal error during extraction", started)
}

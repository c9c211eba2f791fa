package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"notaria/internal/logger"
	"notaria/internal/processor"
	"notaria/pkg/models"
)

var extractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Extract notarial and vehicle fields from PDFs and screenshots",
	Long: `Process one or more documents and print one JSON extraction result per file.

Document types are detected from the file extension, the file name, the file
size and the page count. Use --type to force one of:
  PDF_EXTRACTO, PDF_DILIGENCIA, SCREENSHOT_VEHICULO

A failed document never aborts the batch: its result carries success=false
and an error message. The command exits non-zero when every document failed.

Configuration is read from the environment (see .env.example):
  OCR_BACKEND         - tesseract (default) or vision
  TEXT_LAYER_BACKEND  - pdfkit (default), pdftotext or documentai
  MIN_CONFIDENCE      - default field confidence threshold`,
	Example: `  # Extract a deed summary
  notaria extract extracto-1234.pdf

  # Several screenshots, two at a time, without the enhanced variants
  notaria extract *.png --concurrency 2 --no-enhance

  # Force the type and keep only confident fields
  notaria extract scan.pdf --type PDF_DILIGENCIA --min-confidence 0.8 -o result.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().StringP("type", "t", "", "Force the document type")
	extractCmd.Flags().Bool("no-enhance", false, "Skip the enhanced preprocessing variants")
	extractCmd.Flags().Float64("min-confidence", 0, "Drop fields below this confidence (default from MIN_CONFIDENCE)")
	extractCmd.Flags().String("lang", "", "OCR language override (e.g. spa, spa+eng)")
	extractCmd.Flags().Int("concurrency", 0, "Documents processed at once (default from BATCH_CONCURRENCY)")
	extractCmd.Flags().Int("timeout", 600, "Processing timeout in seconds")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	forceType, _ := cmd.Flags().GetString("type")
	noEnhance, _ := cmd.Flags().GetBool("no-enhance")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	lang, _ := cmd.Flags().GetString("lang")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	opts := models.ProcessingOptions{
		ForceDocumentType: models.DocumentType(strings.ToUpper(forceType)),
		MinConfidence:     minConfidence,
		OCRLanguage:       lang,
	}
	if noEnhance {
		opts.EnhanceImage = models.Bool(false)
	}
	if opts.ForceDocumentType != "" && !opts.ForceDocumentType.Valid() {
		return fmt.Errorf("unknown document type %q", forceType)
	}
	if minConfidence < 0 || minConfidence > 1 {
		return fmt.Errorf("--min-confidence must be between 0 and 1, got %v", minConfidence)
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	proc, err := processor.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create document processor")
		return fmt.Errorf("failed to create document processor: %w", err)
	}
	defer func() {
		if closeErr := proc.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close document processor")
		}
	}()

	log.Info().
		Int("files", len(args)).
		Str("type", forceType).
		Bool("enhance", opts.Enhance()).
		Float64("min_confidence", minConfidence).
		Msg("Starting extraction")

	startTime := time.Now()
	var results []models.ExtractionResult
	if len(args) == 1 {
		results = []models.ExtractionResult{proc.ProcessDocument(ctx, args[0], opts)}
	} else {
		results = proc.ProcessMultipleDocuments(ctx, args, opts, concurrency)
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	log.Info().
		Int("files", len(results)).
		Int("succeeded", succeeded).
		Dur("duration", time.Since(startTime)).
		Msg("Extraction completed")

	if err := writeResults(results, outputPath, log); err != nil {
		return err
	}
	if succeeded == 0 {
		return fmt.Errorf("no document could be extracted")
	}
	return nil
}

// writeResults prints a single result as an object and several as an array.
func writeResults(results []models.ExtractionResult, outputPath string, log zerolog.Logger) error {
	var payload any = results
	if len(results) == 1 {
		payload = results[0]
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return writeOutput(append(data, '\n'), outputPath, log)
}

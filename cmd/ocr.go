package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"notaria/internal/logger"
	"notaria/internal/ocr"
	"notaria/internal/processor"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-files...]",
	Short: "Recognize the raw text of images with the OCR engine",
	Long: `Run the OCR engine over one or more images without preprocessing or field
extraction. Useful to check how a backend reads a screenshot.

The backend is selected with OCR_BACKEND:
  tesseract - local Tesseract through gosseract (default)
  vision    - Google Cloud Vision; needs GOOGLE_APPLICATION_CREDENTIALS
              or GOOGLE_CREDENTIALS`,
	Example: `  # Print the recognized text of a screenshot
  notaria ocr matricula.png

  # Several images as JSON, with Spanish and English models
  notaria ocr a.png b.jpg --json --lang spa+eng`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	FileName           string  `json:"file_name"`
	Text               string  `json:"text,omitempty"`
	Confidence         float64 `json:"confidence,omitempty"`
	Backend            string  `json:"backend,omitempty"`
	ProcessingDuration string  `json:"processing_duration,omitempty"`
	Error              string  `json:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().String("lang", "", "OCR language override (e.g. spa, spa+eng)")
	ocrCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	lang, _ := cmd.Flags().GetString("lang")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	engine, err := startEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopEngine(ctx, engine, log)

	log.Info().
		Int("files", len(args)).
		Str("backend", cfg.OCRBackend).
		Msg("Starting OCR processing")

	items := engine.RecognizeMultiple(ctx, args, ocr.Options{Language: lang}, cfg.OCRPoolSize)

	failed := 0
	outputs := make([]OCROutput, len(items))
	for i, item := range items {
		out := OCROutput{FileName: filepath.Base(item.Path)}
		if item.Err != nil {
			failed++
			out.Error = handleOCRError(item.Err, log).Error()
		} else {
			out.Text = item.Result.Text
			out.Confidence = item.Result.Confidence
			out.Backend = item.Result.Backend
			out.ProcessingDuration = item.Result.ProcessingDuration.String()
		}
		outputs[i] = out
	}

	h := engine.Health()
	log.Info().
		Int("files", len(items)).
		Int("failed", failed).
		Int("peak_busy", h.PeakBusy).
		Int64("cache_hits", h.CacheHits).
		Msg("OCR processing completed")

	data, err := formatOCROutput(outputs, jsonOutput)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	if err := writeOutput(data, outputPath, log); err != nil {
		return err
	}
	if failed == len(items) {
		return fmt.Errorf("no image could be recognized")
	}
	return nil
}

func formatOCROutput(outputs []OCROutput, jsonOutput bool) ([]byte, error) {
	if jsonOutput {
		data, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}

	var b strings.Builder
	for _, out := range outputs {
		if len(outputs) > 1 {
			fmt.Fprintf(&b, "=== %s ===\n", out.FileName)
		}
		if out.Error != "" {
			fmt.Fprintf(&b, "error: %s\n\n", out.Error)
			continue
		}
		b.WriteString(out.Text)
		if !strings.HasSuffix(out.Text, "\n") {
			b.WriteString("\n")
		}
		if len(outputs) > 1 {
			b.WriteString("\n")
		}
	}
	return []byte(b.String()), nil
}

// writeOutput writes data to outputPath, or to stdout when it is empty.
func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			log.Error().Err(err).Msg("Failed to write to stdout")
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Results written to file")
	return nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not configured. Set GOOGLE_APPLICATION_CREDENTIALS " +
			"to a service account JSON file or GOOGLE_CREDENTIALS to inline JSON, or use OCR_BACKEND=tesseract")
	case errors.Is(err, ocr.ErrInvalidImage):
		return fmt.Errorf("invalid or unreadable image. Please check the file integrity")
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the image")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials: %w", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account has the 'Cloud Vision API User' role")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") ||
		strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud Vision API quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}

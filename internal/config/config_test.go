package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OCRBackend != OCRBackendTesseract || cfg.TextLayerBackend != TextLayerPdfkit {
		t.Errorf("backends = %s / %s", cfg.OCRBackend, cfg.TextLayerBackend)
	}
	if cfg.OCRPoolSize != 3 || cfg.OCRLanguage != "spa" || cfg.OCRDPI != 300 {
		t.Errorf("OCR defaults = %d %s %d", cfg.OCRPoolSize, cfg.OCRLanguage, cfg.OCRDPI)
	}
	if cfg.OCRCacheTTL != time.Hour || cfg.OCRSlowThreshold != 5*time.Second || cfg.OCRLowConfidence != 0.8 {
		t.Errorf("OCR thresholds = %v %v %v", cfg.OCRCacheTTL, cfg.OCRSlowThreshold, cfg.OCRLowConfidence)
	}
	if cfg.MaxFileSizeBytes != 50*1024*1024 || cfg.BatchConcurrency != 3 {
		t.Errorf("limits = %d %d", cfg.MaxFileSizeBytes, cfg.BatchConcurrency)
	}
	if cfg.PDFDiligenciaMaxBytes != 100*1024 || cfg.PDFExtractoMinPages != 3 {
		t.Errorf("PDF heuristics = %d %d", cfg.PDFDiligenciaMaxBytes, cfg.PDFExtractoMinPages)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("OCR_BACKEND", "Vision")
	t.Setenv("OCR_POOL_SIZE", "5")
	t.Setenv("OCR_CACHE_TTL", "15m")
	t.Setenv("MIN_CONFIDENCE", "0.6")
	t.Setenv("BATCH_DELAY", "250ms")
	t.Setenv("OCR_DPI", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OCRBackend != OCRBackendVision {
		t.Errorf("OCRBackend = %q, want %q", cfg.OCRBackend, OCRBackendVision)
	}
	if cfg.OCRPoolSize != 5 || cfg.OCRCacheTTL != 15*time.Minute || cfg.MinConfidence != 0.6 || cfg.BatchDelay != 250*time.Millisecond {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.OCRDPI != 300 {
		t.Errorf("unparseable OCR_DPI should keep the default, got %d", cfg.OCRDPI)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"pool size", map[string]string{"OCR_POOL_SIZE": "0"}, "OCR_POOL_SIZE"},
		{"ocr backend", map[string]string{"OCR_BACKEND": "abbyy"}, "OCR_BACKEND"},
		{"text layer backend", map[string]string{"TEXT_LAYER_BACKEND": "pdfium"}, "TEXT_LAYER_BACKEND"},
		{"document ai without processor", map[string]string{"TEXT_LAYER_BACKEND": "documentai"}, "DOCUMENT_AI_PROCESSOR_ID"},
		{"min confidence", map[string]string{"MIN_CONFIDENCE": "1.5"}, "MIN_CONFIDENCE"},
		{"batch concurrency", map[string]string{"BATCH_CONCURRENCY": "-1"}, "BATCH_CONCURRENCY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}

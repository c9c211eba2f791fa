package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"notaria/internal/logger"
)

// Supported backend names.
const (
	OCRBackendTesseract = "tesseract"
	OCRBackendVision    = "vision"

	TextLayerPdfkit     = "pdfkit"
	TextLayerPdftotext  = "pdftotext"
	TextLayerDocumentAI = "documentai"
)

type Config struct {
	// OCR Engine
	OCRBackend       string
	OCRPoolSize      int
	OCRLanguage      string
	OCRCharWhitelist string
	OCRDPI           int
	OCRPageSegMode   int
	OCRCacheTTL      time.Duration
	OCRCacheSweep    time.Duration
	OCRSlowThreshold time.Duration
	OCRLowConfidence float64

	// Image preprocessing
	PreprocessTargetLongSide int
	PreprocessMinScale       float64
	PreprocessTempDir        string

	// Extraction
	MaxFileSizeBytes    int64
	MinConfidence       float64
	InvalidFieldPenalty float64
	ContextWindow       int

	// PDF type heuristics
	PDFDiligenciaMaxBytes int64
	PDFExtractoMinPages   int

	// Batch processing
	BatchConcurrency int
	BatchDelay       time.Duration

	// PDF text layer
	TextLayerBackend string
	PdftotextPath    string

	// Google Cloud Configuration (Vision OCR and Document AI text layer)
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string
	DocumentAITimeout          time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	config := &Config{
		OCRBackend:          strings.ToLower(getEnv("OCR_BACKEND", OCRBackendTesseract)),
		OCRPoolSize:         getEnvAsInt("OCR_POOL_SIZE", 3),
		OCRLanguage:         getEnv("OCR_LANGUAGE", "spa"),
		OCRCharWhitelist:    getEnv("OCR_CHAR_WHITELIST", DefaultCharWhitelist),
		OCRDPI:              getEnvAsInt("OCR_DPI", 300),
		OCRPageSegMode:      getEnvAsInt("OCR_PAGE_SEG_MODE", 6),
		OCRCacheTTL:         getEnvAsDuration("OCR_CACHE_TTL", time.Hour),
		OCRCacheSweep:       getEnvAsDuration("OCR_CACHE_SWEEP", 10*time.Minute),
		OCRSlowThreshold:    getEnvAsDuration("OCR_SLOW_THRESHOLD", 5*time.Second),
		OCRLowConfidence:    getEnvAsFloat("OCR_LOW_CONFIDENCE", 0.8),

		PreprocessTargetLongSide: getEnvAsInt("PREPROCESS_TARGET_LONG_SIDE", 2000),
		PreprocessMinScale:       getEnvAsFloat("PREPROCESS_MIN_SCALE", 1.2),
		PreprocessTempDir:        getEnv("PREPROCESS_TEMP_DIR", os.TempDir()),

		MaxFileSizeBytes:    getEnvAsInt64("MAX_FILE_SIZE_BYTES", 50*1024*1024),
		MinConfidence:       getEnvAsFloat("MIN_CONFIDENCE", 0),
		InvalidFieldPenalty: getEnvAsFloat("INVALID_FIELD_PENALTY", 0.5),
		ContextWindow:       getEnvAsInt("CONTEXT_WINDOW", 100),

		PDFDiligenciaMaxBytes: getEnvAsInt64("PDF_DILIGENCIA_MAX_BYTES", 100*1024),
		PDFExtractoMinPages:   getEnvAsInt("PDF_EXTRACTO_MIN_PAGES", 3),

		BatchConcurrency: getEnvAsInt("BATCH_CONCURRENCY", 3),
		BatchDelay:       getEnvAsDuration("BATCH_DELAY", 100*time.Millisecond),

		TextLayerBackend: strings.ToLower(getEnv("TEXT_LAYER_BACKEND", TextLayerPdfkit)),
		PdftotextPath:    getEnv("PDFTOTEXT_PATH", "pdftotext"),

		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		DocumentAITimeout:          getEnvAsDuration("DOCUMENT_AI_TIMEOUT", 2*time.Minute),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:     getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// DefaultCharWhitelist restricts OCR output to the characters found in
// Spanish notarial and vehicle documents.
const DefaultCharWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZÁÉÍÓÚÑÜabcdefghijklmnopqrstuvwxyzáéíóúñü0123456789 .,:;-/()$#°ºª%&@_'\"\n"

// Validate checks value ranges and backend names.
func (c *Config) Validate() error {
	if c.OCRPoolSize <= 0 {
		return fmt.Errorf("OCR_POOL_SIZE must be positive, got %d", c.OCRPoolSize)
	}
	if c.OCRLanguage == "" {
		return fmt.Errorf("OCR_LANGUAGE is required")
	}
	if c.OCRBackend != OCRBackendTesseract && c.OCRBackend != OCRBackendVision {
		return fmt.Errorf("OCR_BACKEND must be %q or %q, got %q", OCRBackendTesseract, OCRBackendVision, c.OCRBackend)
	}
	switch c.TextLayerBackend {
	case TextLayerPdfkit, TextLayerPdftotext, TextLayerDocumentAI:
	default:
		return fmt.Errorf("TEXT_LAYER_BACKEND must be %q, %q or %q, got %q", TextLayerPdfkit, TextLayerPdftotext, TextLayerDocumentAI, c.TextLayerBackend)
	}
	if c.TextLayerBackend == TextLayerDocumentAI && (c.GoogleCloudProject == "" || c.DocumentAIProcessorID == "") {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID are required for the documentai text layer")
	}
	for name, v := range map[string]float64{
		"OCR_LOW_CONFIDENCE":    c.OCRLowConfidence,
		"MIN_CONFIDENCE":        c.MinConfidence,
		"INVALID_FIELD_PENALTY": c.InvalidFieldPenalty,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	if c.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_BYTES must be positive")
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency)
	}
	if c.OCRCacheTTL <= 0 {
		return fmt.Errorf("OCR_CACHE_TTL must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

package processor

import (
	"context"
	"fmt"

	"notaria/internal/config"
	"notaria/internal/detect"
	"notaria/internal/extraction"
	"notaria/internal/ocr"
	"notaria/internal/patterns"
	"notaria/internal/preprocess"
	"notaria/internal/textlayer"
)

// NewFromConfig wires the full extraction core from the application config:
// pattern library, detector, text layer provider, preprocessing pipeline and
// a per-call OCR engine. Close the processor to release the text layer client.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*DocumentProcessor, error) {
	lib := patterns.New(PatternsConfig(cfg))
	detector := detect.New(detect.Config{
		DiligenciaMaxBytes: cfg.PDFDiligenciaMaxBytes,
		ExtractoMinPages:   cfg.PDFExtractoMinPages,
	})

	provider, err := textlayer.New(ctx, textlayer.Options{
		Backend:       cfg.TextLayerBackend,
		PdftotextPath: cfg.PdftotextPath,
		DocumentAI: textlayer.DocumentAIConfig{
			ProjectID:        cfg.GoogleCloudProject,
			Location:         cfg.GoogleCloudLocation,
			ProcessorID:      cfg.DocumentAIProcessorID,
			ProcessorVersion: cfg.DocumentAIProcessorVersion,
			Timeout:          cfg.DocumentAITimeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create text layer provider: %w", err)
	}

	factory, err := BackendFactory(cfg.OCRBackend)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	ocrCfg := EngineConfig(cfg)
	newEngine := func() extraction.OCREngine {
		return ocr.NewEngine(ocrCfg, factory)
	}

	pipeline := preprocess.NewPipeline(preprocess.Config{
		TargetLongSide: cfg.PreprocessTargetLongSide,
		MinScale:       cfg.PreprocessMinScale,
		TempDir:        cfg.PreprocessTempDir,
	}, lib)

	p := New(Config{
		MaxFileSize:   cfg.MaxFileSizeBytes,
		Concurrency:   cfg.BatchConcurrency,
		BatchDelay:    cfg.BatchDelay,
		MinConfidence: cfg.MinConfidence,
	}, detector,
		extraction.NewPDFExtractor(provider, lib, detector),
		extraction.NewScreenshotExtractor(newEngine, pipeline, lib),
	)
	p.closers = append(p.closers, provider)
	return p, nil
}

// PatternsConfig applies the configured scoring knobs to the default
// pattern configuration.
func PatternsConfig(cfg *config.Config) patterns.Config {
	pc := patterns.DefaultConfig()
	if cfg.InvalidFieldPenalty > 0 {
		pc.InvalidPenalty = cfg.InvalidFieldPenalty
	}
	if cfg.ContextWindow > 0 {
		pc.ContextWindow = cfg.ContextWindow
	}
	return pc
}

// EngineConfig maps the OCR settings onto an engine configuration.
func EngineConfig(cfg *config.Config) ocr.Config {
	return ocr.Config{
		PoolSize: cfg.OCRPoolSize,
		Defaults: ocr.Options{
			Language:    cfg.OCRLanguage,
			Whitelist:   cfg.OCRCharWhitelist,
			DPI:         cfg.OCRDPI,
			PageSegMode: cfg.OCRPageSegMode,
		},
		CacheTTL:      cfg.OCRCacheTTL,
		CacheSweep:    cfg.OCRCacheSweep,
		SlowThreshold: cfg.OCRSlowThreshold,
		LowConfidence: cfg.OCRLowConfidence,
	}
}

// BackendFactory returns the worker constructor for the named OCR backend.
func BackendFactory(name string) (ocr.BackendFactory, error) {
	switch name {
	case "", config.OCRBackendTesseract:
		return ocr.NewTesseractBackend, nil
	case config.OCRBackendVision:
		return ocr.NewVisionBackend, nil
	default:
		return nil, fmt.Errorf("unknown OCR backend %q", name)
	}
}

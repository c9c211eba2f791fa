// Package preprocess builds enhanced variants of a screenshot, recognizes each
// one and keeps the variant whose text looks most like a vehicle document.
package preprocess

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Screenshot formats beyond the ones imaging decodes natively
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"notaria/internal/logger"
	"notaria/internal/ocr"
	"notaria/internal/patterns"
)

// Recognizer runs OCR on an image file. *ocr.Engine satisfies it.
type Recognizer interface {
	Recognize(ctx context.Context, path string, opts ocr.Options) (*ocr.Result, error)
}

// Config tunes the pipeline.
type Config struct {
	// TargetLongSide is the longer side the scaled variant is resized to.
	TargetLongSide int
	// MinScale is the smallest upscale factor worth a scaled variant.
	MinScale float64
	// TempDir holds the variant files while they are recognized.
	TempDir string
	// Weights rank the recognized variants.
	Weights Weights
}

// DefaultConfig returns a 2000px target, 1.2 minimum scale, the OS temp dir
// and the default weights.
func DefaultConfig() Config {
	return Config{TargetLongSide: 2000, MinScale: 1.2, TempDir: os.TempDir(), Weights: DefaultWeights()}
}

// Candidate is the OCR outcome of one variant.
type Candidate struct {
	Variant Variant
	Result  *ocr.Result
	Score   float64
	Err     error
}

// Outcome holds every candidate in variant order and the winner.
type Outcome struct {
	Best       Candidate
	Candidates []Candidate
	Warnings   []string
}

// Pipeline produces, recognizes and scores image variants.
type Pipeline struct {
	cfg Config
	lib *patterns.Library
	log zerolog.Logger
}

// NewPipeline creates a pipeline scoring with lib.
func NewPipeline(cfg Config, lib *patterns.Library) *Pipeline {
	if cfg.TargetLongSide <= 0 {
		cfg.TargetLongSide = 2000
	}
	if cfg.MinScale <= 0 {
		cfg.MinScale = 1.2
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	return &Pipeline{cfg: cfg, lib: lib, log: logger.WithComponent("preprocess")}
}

// Probe decodes only the image header and returns its dimensions.
func Probe(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%w: empty dimensions %dx%d", ErrUnreadableImage, cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}

// recipes returns the variants for src in their fixed order. The scaled
// variant is only produced when it would enlarge the image enough.
func (p *Pipeline) recipes(src image.Image, enhance bool) []recipe {
	out := []recipe{
		{variant: VariantStandard, build: standardRecipe},
		{variant: VariantContrast, build: contrastRecipe},
	}
	if factor := UpscaleFactor(src.Bounds(), p.cfg.TargetLongSide); factor >= p.cfg.MinScale {
		out = append(out, recipe{variant: VariantScaled, build: scaledRecipe(factor)})
	}
	if enhance {
		out = append(out, recipe{variant: VariantEnhanced, build: enhancedRecipe})
	}
	return out
}

// Run builds every variant of the image at path, recognizes them
// concurrently and returns the best scoring one. Variant files are removed
// before Run returns, on success or failure.
func (p *Pipeline) Run(ctx context.Context, path string, rec Recognizer, opts ocr.Options, enhance bool) (*Outcome, error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	recipes := p.recipes(src, enhance)
	candidates := make([]Candidate, len(recipes))
	files := make([]string, len(recipes))
	defer p.cleanup(files)

	var g errgroup.Group
	for i, r := range recipes {
		g.Go(func() error {
			candidates[i] = p.runVariant(ctx, src, r, rec, opts, &files[i])
			return nil
		})
	}
	_ = g.Wait()

	out := &Outcome{Candidates: candidates}
	bestIdx := -1
	var errs []error
	for i, c := range candidates {
		if c.Err != nil {
			errs = append(errs, c.Err)
			out.Warnings = append(out.Warnings, c.Err.Error())
			p.log.Warn().Err(c.Err).Str("variant", string(c.Variant)).Msg("variant failed")
			continue
		}
		// Strictly greater keeps the earlier variant on ties
		if bestIdx < 0 || c.Score > candidates[bestIdx].Score {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return out, errors.Join(append([]error{ErrNoUsableVariant}, errs...)...)
	}
	out.Best = candidates[bestIdx]

	p.log.Debug().
		Str("variant", string(out.Best.Variant)).
		Float64("score", out.Best.Score).
		Int("variants", len(candidates)).
		Msg("selected best variant")
	return out, nil
}

func (p *Pipeline) runVariant(ctx context.Context, src image.Image, r recipe, rec Recognizer, opts ocr.Options, file *string) (c Candidate) {
	c.Variant = r.variant
	defer func() {
		if v := recover(); v != nil {
			c = Candidate{Variant: r.variant, Err: &VariantError{Variant: r.variant, Stage: "build", Err: fmt.Errorf("panic: %v", v)}}
		}
	}()

	img := r.build(src)

	name := filepath.Join(p.cfg.TempDir, fmt.Sprintf("notaria-%s-%s.png", uuid.NewString(), r.variant))
	if err := imaging.Save(img, name); err != nil {
		c.Err = &VariantError{Variant: r.variant, Stage: "save", Err: err}
		*file = name
		return c
	}
	*file = name

	res, err := rec.Recognize(ctx, name, opts)
	if err != nil {
		c.Err = &VariantError{Variant: r.variant, Stage: "recognize", Err: err}
		return c
	}
	c.Result = res
	c.Score = p.cfg.Weights.Score(p.lib, res)
	return c
}

func (p *Pipeline) cleanup(files []string) {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.log.Warn().Err(err).Str("file", f).Msg("failed to remove variant file")
		}
	}
}

package preprocess

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"notaria/internal/ocr"
	"notaria/internal/patterns"
)

// variantRecognizer answers by variant name, taken from the temp file name.
type variantRecognizer struct {
	mu      sync.Mutex
	results map[Variant]*ocr.Result
	errs    map[Variant]error
	seen    []string
}

func (v *variantRecognizer) Recognize(ctx context.Context, path string, opts ocr.Options) (*ocr.Result, error) {
	v.mu.Lock()
	v.seen = append(v.seen, path)
	v.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), ".png")
	variant := Variant(name[strings.LastIndex(name, "-")+1:])
	if err := v.errs[variant]; err != nil {
		return nil, err
	}
	if r, ok := v.results[variant]; ok {
		return r, nil
	}
	return &ocr.Result{Text: "", Confidence: 0.1}, nil
}

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 230, G: 230, B: 230, A: 255}
			if x > w/4 && x < w/2 && y > h/4 && y < h/2 {
				c = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, "shot.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(t *testing.T) (*Pipeline, string) {
	t.Helper()
	tmp := t.TempDir()
	return NewPipeline(Config{TargetLongSide: 2000, MinScale: 1.2, TempDir: tmp}, patterns.Default()), tmp
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("variant files left behind: %v", entries)
	}
}

const vehicleText = "PLACA ABC-1234 MARCA TOYOTA MODELO HILUX COMPRADOR CEDULA 1710034065"

func TestRunSelectsBestVariant(t *testing.T) {
	p, tmp := newTestPipeline(t)
	src := writePNG(t, t.TempDir(), 400, 200)
	rec := &variantRecognizer{results: map[Variant]*ocr.Result{
		VariantStandard: {Text: "RUIDO", Confidence: 0.95},
		VariantContrast: {Text: vehicleText, Confidence: 0.7},
		VariantEnhanced: {Text: "PLACA ABC-1234 con poco texto legible en la imagen", Confidence: 0.9},
	}}

	out, err := p.Run(context.Background(), src, rec, ocr.Options{}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Best.Variant != VariantContrast {
		t.Errorf("best variant = %s, want contrast (candidates %+v)", out.Best.Variant, out.Candidates)
	}
	if len(out.Candidates) != 4 {
		t.Errorf("got %d candidates, want 4 (small image gets a scaled variant)", len(out.Candidates))
	}
	for i, want := range []Variant{VariantStandard, VariantContrast, VariantScaled, VariantEnhanced} {
		if out.Candidates[i].Variant != want {
			t.Errorf("candidate %d = %s, want %s", i, out.Candidates[i].Variant, want)
		}
	}
	assertEmptyDir(t, tmp)
}

func TestRunTieKeepsEarlierVariant(t *testing.T) {
	p, _ := newTestPipeline(t)
	src := writePNG(t, t.TempDir(), 400, 200)
	same := &ocr.Result{Text: vehicleText, Confidence: 0.8}
	rec := &variantRecognizer{results: map[Variant]*ocr.Result{
		VariantStandard: same, VariantContrast: same, VariantScaled: same, VariantEnhanced: same,
	}}

	out, err := p.Run(context.Background(), src, rec, ocr.Options{}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Best.Variant != VariantStandard {
		t.Errorf("best variant = %s, want standard on ties", out.Best.Variant)
	}
}

func TestRunVariantSelection(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		enhance bool
		want    []Variant
	}{
		{"small image enhanced", 400, true, []Variant{VariantStandard, VariantContrast, VariantScaled, VariantEnhanced}},
		{"small image plain", 400, false, []Variant{VariantStandard, VariantContrast, VariantScaled}},
		{"large image skips scaled", 1900, true, []Variant{VariantStandard, VariantContrast, VariantEnhanced}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPipeline(t)
			src := writePNG(t, t.TempDir(), tt.width, 60)
			out, err := p.Run(context.Background(), src, &variantRecognizer{}, ocr.Options{}, tt.enhance)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(out.Candidates) != len(tt.want) {
				t.Fatalf("got %d candidates, want %d", len(out.Candidates), len(tt.want))
			}
			for i, v := range tt.want {
				if out.Candidates[i].Variant != v {
					t.Errorf("candidate %d = %s, want %s", i, out.Candidates[i].Variant, v)
				}
			}
		})
	}
}

func TestRunVariantFailureIsNotFatal(t *testing.T) {
	p, tmp := newTestPipeline(t)
	src := writePNG(t, t.TempDir(), 400, 200)
	rec := &variantRecognizer{
		results: map[Variant]*ocr.Result{VariantContrast: {Text: vehicleText, Confidence: 0.8}},
		errs:    map[Variant]error{VariantStandard: ocr.ErrRecognitionFailed},
	}

	out, err := p.Run(context.Background(), src, rec, ocr.Options{}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Best.Variant != VariantContrast {
		t.Errorf("best = %s, want contrast", out.Best.Variant)
	}
	if len(out.Warnings) != 1 {
		t.Errorf("warnings = %v, want one", out.Warnings)
	}
	failed := out.Candidates[0]
	if !errors.Is(failed.Err, ErrVariantFailed) || !errors.Is(failed.Err, ocr.ErrRecognitionFailed) {
		t.Errorf("standard candidate error = %v", failed.Err)
	}
	assertEmptyDir(t, tmp)
}

func TestRunAllVariantsFail(t *testing.T) {
	p, tmp := newTestPipeline(t)
	src := writePNG(t, t.TempDir(), 400, 200)
	boom := errors.New("tesseract crashed")
	rec := &variantRecognizer{errs: map[Variant]error{
		VariantStandard: boom, VariantContrast: boom, VariantScaled: boom, VariantEnhanced: boom,
	}}

	_, err := p.Run(context.Background(), src, rec, ocr.Options{}, true)
	if !errors.Is(err, ErrNoUsableVariant) || !errors.Is(err, boom) {
		t.Errorf("expected ErrNoUsableVariant wrapping the cause, got %v", err)
	}
	assertEmptyDir(t, tmp)
}

func TestRunUnreadableImage(t *testing.T) {
	p, _ := newTestPipeline(t)
	bad := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), bad, &variantRecognizer{}, ocr.Options{}, true); !errors.Is(err, ErrUnreadableImage) {
		t.Errorf("expected ErrUnreadableImage, got %v", err)
	}
}

func TestProbe(t *testing.T) {
	src := writePNG(t, t.TempDir(), 320, 240)
	w, h, err := Probe(src)
	if err != nil || w != 320 || h != 240 {
		t.Errorf("Probe = %d, %d, %v", w, h, err)
	}

	if _, _, err := Probe(filepath.Join(t.TempDir(), "missing.png")); !errors.Is(err, ErrUnreadableImage) {
		t.Errorf("expected ErrUnreadableImage for a missing file, got %v", err)
	}
}

func TestScore(t *testing.T) {
	lib := patterns.Default()

	// PLACA MARCA MODELO COMPRADOR CEDULA, one cédula and one plate
	got := Score(lib, &ocr.Result{Text: vehicleText, Confidence: 0.9})
	want := 0.6*0.9 + 0.05*5 + 0.1 + 0.1
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}

	short := Score(lib, &ocr.Result{Text: "PLACA ABC-1234", Confidence: 0.9})
	wantShort := (0.6*0.9 + 0.05 + 0.1) * 0.5
	if math.Abs(short-wantShort) > 1e-9 {
		t.Errorf("short Score = %v, want %v", short, wantShort)
	}

	if Score(lib, nil) != 0 {
		t.Error("nil result should score 0")
	}
}

func grey(w, h int, values ...uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, v := range values {
		img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = v, v, v, 255
	}
	return img
}

func TestFilters(t *testing.T) {
	t.Run("threshold", func(t *testing.T) {
		out := Threshold(grey(3, 1, 127, 128, 200), 128)
		if out.Pix[0] != 0 || out.Pix[4] != 255 || out.Pix[8] != 255 {
			t.Errorf("Threshold pixels = %v", out.Pix)
		}
	})

	t.Run("normalize", func(t *testing.T) {
		out := Normalize(grey(3, 1, 50, 100, 150))
		if out.Pix[0] != 0 || out.Pix[4] != 128 || out.Pix[8] != 255 {
			t.Errorf("Normalize pixels = %d %d %d", out.Pix[0], out.Pix[4], out.Pix[8])
		}
	})

	t.Run("linear clamps", func(t *testing.T) {
		out := Linear(grey(2, 1, 20, 250), 1.5, -64)
		if out.Pix[0] != 0 || out.Pix[4] != 255 {
			t.Errorf("Linear pixels = %d %d", out.Pix[0], out.Pix[4])
		}
	})

	t.Run("median removes salt noise", func(t *testing.T) {
		img := grey(3, 3, 0, 0, 0, 0, 255, 0, 0, 0, 0)
		out := Median3(img)
		if out.Pix[out.PixOffset(1, 1)] != 0 {
			t.Error("isolated white pixel should be removed")
		}
	})

	t.Run("upscale factor", func(t *testing.T) {
		if f := UpscaleFactor(image.Rect(0, 0, 1000, 500), 2000); f != 2 {
			t.Errorf("UpscaleFactor = %v, want 2", f)
		}
		out := Resize(grey(10, 5), 2)
		if b := out.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
			t.Errorf("Resize bounds = %v", b)
		}
	})
}

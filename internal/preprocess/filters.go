package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Variant names one preprocessing recipe.
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantContrast Variant = "contrast"
	VariantScaled   Variant = "scaled"
	VariantEnhanced Variant = "enhanced"
)

// Grayscale converts img to grey levels stored in an NRGBA image.
func Grayscale(img image.Image) *image.NRGBA {
	return imaging.Grayscale(img)
}

// Normalize stretches grey levels so the darkest pixel becomes 0 and the
// brightest 255. Flat images are returned unchanged.
func Normalize(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	for i := 0; i < len(img.Pix); i += 4 {
		v := img.Pix[i]
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi <= lo {
		return imaging.Clone(img)
	}
	span := float64(hi - lo)
	return mapGrey(img, func(v uint8) uint8 {
		return clampByte((float64(v) - float64(lo)) * 255 / span)
	})
}

// Linear applies v*gain + offset to every grey level.
func Linear(img *image.NRGBA, gain, offset float64) *image.NRGBA {
	return mapGrey(img, func(v uint8) uint8 {
		return clampByte(float64(v)*gain + offset)
	})
}

// Gamma applies gamma correction; values above 1 lighten mid tones.
func Gamma(img *image.NRGBA, gamma float64) *image.NRGBA {
	return imaging.AdjustGamma(img, gamma)
}

// Sharpen applies an unsharp mask.
func Sharpen(img *image.NRGBA) *image.NRGBA {
	return imaging.Sharpen(img, 1.0)
}

// Blur applies a slight gaussian blur.
func Blur(img image.Image, sigma float64) *image.NRGBA {
	return imaging.Blur(img, sigma)
}

// Threshold maps grey levels >= t to white and the rest to black.
func Threshold(img *image.NRGBA, t uint8) *image.NRGBA {
	return mapGrey(img, func(v uint8) uint8 {
		if v >= t {
			return 255
		}
		return 0
	})
}

// Median3 replaces every pixel with the median of its 3x3 neighbourhood.
// Edge pixels use the clamped neighbourhood.
func Median3(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	var window [9]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				yy := min(max(y+dy, 0), h-1)
				for dx := -1; dx <= 1; dx++ {
					xx := min(max(x+dx, 0), w-1)
					window[n] = img.Pix[img.PixOffset(b.Min.X+xx, b.Min.Y+yy)]
					n++
				}
			}
			v := median9(window)
			i := out.PixOffset(x, y)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = v, v, v, 255
		}
	}
	return out
}

func median9(w [9]uint8) uint8 {
	// insertion sort on a copy
	for i := 1; i < len(w); i++ {
		for j := i; j > 0 && w[j] < w[j-1]; j-- {
			w[j], w[j-1] = w[j-1], w[j]
		}
	}
	return w[4]
}

// UpscaleFactor is the factor needed for the longer side to reach target.
func UpscaleFactor(b image.Rectangle, target int) float64 {
	long := max(b.Dx(), b.Dy())
	if long <= 0 {
		return 0
	}
	return float64(target) / float64(long)
}

// Resize scales img by factor with Catmull-Rom interpolation.
func Resize(img image.Image, factor float64) *image.NRGBA {
	b := img.Bounds()
	w := max(int(float64(b.Dx())*factor+0.5), 1)
	h := max(int(float64(b.Dy())*factor+0.5), 1)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func mapGrey(img *image.NRGBA, fn func(uint8) uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := fn(c.R)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

// recipe builds one variant from the decoded source image.
type recipe struct {
	variant Variant
	build   func(src image.Image) *image.NRGBA
}

func standardRecipe(src image.Image) *image.NRGBA {
	img := Gamma(Normalize(Grayscale(src)), 1.2)
	return Threshold(Sharpen(img), 128)
}

func contrastRecipe(src image.Image) *image.NRGBA {
	img := Linear(Normalize(Grayscale(src)), 1.5, -64)
	return Threshold(Sharpen(img), 120)
}

func scaledRecipe(factor float64) func(image.Image) *image.NRGBA {
	return func(src image.Image) *image.NRGBA {
		img := Normalize(Grayscale(Resize(src, factor)))
		return Threshold(Sharpen(img), 130)
	}
}

func enhancedRecipe(src image.Image) *image.NRGBA {
	img := Normalize(Grayscale(Blur(src, 0.5)))
	return Median3(Threshold(Sharpen(Gamma(img, 0.8)), 135))
}

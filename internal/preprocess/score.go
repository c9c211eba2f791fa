package preprocess

import (
	"strings"

	"notaria/internal/ocr"
	"notaria/internal/patterns"
)

// Weights rate a variant's OCR result.
type Weights struct {
	Confidence float64
	Keyword    float64
	Cedula     float64
	Plate      float64
	// Texts shorter than ShortText characters are multiplied by ShortTextPenalty.
	ShortText        int
	ShortTextPenalty float64
}

// DefaultWeights returns 0.6 confidence, 0.05 per keyword, 0.1 per valid
// cédula and plate, halved below 50 characters.
func DefaultWeights() Weights {
	return Weights{
		Confidence:       0.6,
		Keyword:          0.05,
		Cedula:           0.1,
		Plate:            0.1,
		ShortText:        50,
		ShortTextPenalty: 0.5,
	}
}

// Score rates r with the default weights.
func Score(lib *patterns.Library, r *ocr.Result) float64 {
	return DefaultWeights().Score(lib, r)
}

// Score rates an OCR result by its confidence and by how many distinct
// domain keywords, valid cédulas and valid plates its text contains.
func (w Weights) Score(lib *patterns.Library, r *ocr.Result) float64 {
	if r == nil {
		return 0
	}
	text := r.Text

	keywords := map[string]bool{}
	for _, loc := range lib.DomainKeywords.FindAll(text) {
		keywords[patterns.Fold(text[loc[0]:loc[1]])] = true
	}

	cedulas := 0
	for _, m := range patterns.FindAll(lib.Cedula, text) {
		if patterns.ValidateCedula(strings.ReplaceAll(m.Value, "-", "")) {
			cedulas++
		}
	}

	plates := 0
	for _, m := range patterns.FindAll(lib.Placa, text) {
		if patterns.ValidatePlaca(m.Value) {
			plates++
		}
	}

	score := w.Confidence*r.Confidence +
		w.Keyword*float64(len(keywords)) +
		w.Cedula*float64(cedulas) +
		w.Plate*float64(plates)
	if len([]rune(text)) < w.ShortText {
		score *= w.ShortTextPenalty
	}
	return score
}

package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"notaria/internal/logger"
	"notaria/internal/ocr"
	"notaria/internal/patterns"
	"notaria/internal/preprocess"
	"notaria/pkg/models"
)

// OCREngine is the part of *ocr.Engine the screenshot extractor drives.
type OCREngine interface {
	preprocess.Recognizer
	Terminate(ctx context.Context) error
}

// EngineFactory returns the engine used for one extraction. The extractor
// terminates it before Extract returns.
type EngineFactory func() OCREngine

// ScreenshotExtractor handles vehicle screenshots: it runs the preprocessing
// pipeline, keeps the best recognized variant and reads vehicle and party
// data from its text.
type ScreenshotExtractor struct {
	newEngine EngineFactory
	pipeline  *preprocess.Pipeline
	lib       *patterns.Library
	now       func() time.Time
	log       zerolog.Logger
}

// NewScreenshotExtractor creates a screenshot extractor. A nil pipeline or lib
// uses the defaults.
func NewScreenshotExtractor(newEngine EngineFactory, pipeline *preprocess.Pipeline, lib *patterns.Library) *ScreenshotExtractor {
	if lib == nil {
		lib = patterns.Default()
	}
	if pipeline == nil {
		pipeline = preprocess.NewPipeline(preprocess.DefaultConfig(), lib)
	}
	return &ScreenshotExtractor{
		newEngine: newEngine,
		pipeline:  pipeline,
		lib:       lib,
		now:       time.Now,
		log:       logger.WithComponent("screenshot-extractor"),
	}
}

// Name implements Extractor.
func (s *ScreenshotExtractor) Name() string {
	return "screenshot"
}

// Supports implements Extractor.
func (s *ScreenshotExtractor) Supports(t models.DocumentType) bool {
	return t == models.DocumentTypeScreenshotVehiculo
}

// ValidateInput accepts any image whose header decodes to positive dimensions.
func (s *ScreenshotExtractor) ValidateInput(path string) error {
	if _, _, err := preprocess.Probe(path); err != nil {
		return WrapExtractionError("ValidateInput", path, fmt.Errorf("%w: %w", ErrUnreadableImage, err))
	}
	return nil
}

// Metadata implements Extractor.
func (s *ScreenshotExtractor) Metadata(path string) (models.DocumentMetadata, error) {
	meta, err := fileMetadata(path)
	if err != nil {
		return meta, err
	}
	if w, h, err := preprocess.Probe(path); err == nil {
		meta.Dimensions = &models.Dimensions{Width: w, Height: h}
	}
	return meta, nil
}

// Extract recognizes the screenshot at path and extracts vehicle data. The
// OCR engine is terminated and variant files are removed on every path out.
func (s *ScreenshotExtractor) Extract(ctx context.Context, path string, opts models.ProcessingOptions) (res models.ExtractionResult) {
	started := time.Now()
	const docType, tramite = models.DocumentTypeScreenshotVehiculo, models.TramiteVehiculo
	defer func() {
		if v := recover(); v != nil {
			res = recovered(s.log, docType, tramite, path, v, started)
		}
	}()

	engine := s.newEngine()
	defer func() {
		if err := engine.Terminate(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to terminate OCR engine")
		}
	}()

	outcome, err := s.pipeline.Run(ctx, path, engine, ocr.Options{Language: opts.OCRLanguage}, opts.Enhance())
	if err != nil {
		res = fail(s.log, docType, tramite, path, WrapExtractionError("Extract", path, err), started)
		if outcome != nil {
			res.Metadata.Warnings = outcome.Warnings
		}
		return res
	}

	best := outcome.Best
	res = s.extract(best.Result.Text, opts, started)
	res.Metadata.BestVariant = string(best.Variant)
	res.Metadata.OCRScore = best.Score
	res.Metadata.Warnings = append(res.Metadata.Warnings, outcome.Warnings...)
	res.Metadata.Extra = map[string]string{
		"ocrBackend":    best.Result.Backend,
		"ocrConfidence": strconv.FormatFloat(best.Result.Confidence, 'f', 3, 64),
		"variants":      strconv.Itoa(len(outcome.Candidates)),
	}
	return res
}

// ExtractFromOCRText runs the text stages on already recognized text.
func (s *ScreenshotExtractor) ExtractFromOCRText(text string, opts models.ProcessingOptions) (res models.ExtractionResult) {
	started := time.Now()
	defer func() {
		if v := recover(); v != nil {
			res = recovered(s.log, models.DocumentTypeScreenshotVehiculo, models.TramiteVehiculo, "", v, started)
		}
	}()
	return s.extract(text, opts, started)
}

func (s *ScreenshotExtractor) extract(text string, opts models.ProcessingOptions, started time.Time) models.ExtractionResult {
	const docType, tramite = models.DocumentTypeScreenshotVehiculo, models.TramiteVehiculo
	if strings.TrimSpace(text) == "" {
		res := fail(s.log, docType, tramite, "", ErrNoTextRecognized, started)
		res.Metadata.Extractor = s.Name()
		return res
	}

	fields := s.lib.ExtractCommon(text)
	fields = append(fields, s.vehicleFields(text)...)
	fields = append(fields, roleFields(s.lib, text, s.lib.Config().DefaultRoles)...)

	res := finish(s.lib, docType, tramite, fields, opts, started)
	res.Metadata.Extractor = s.Name()
	res.Metadata.DetectedType = docType
	res.Metadata.TextLength = utf8.RuneCountInString(text)
	return res
}

// nextWord reads the token right after a brand, the usual place of the model.
var nextWord = regexp.MustCompile(`^[ \t]+([A-Z0-9][A-Za-z0-9\-]{1,19})\b`)

// vehicleFields runs the vehicle passes over OCR text.
func (s *ScreenshotExtractor) vehicleFields(text string) []models.ExtractedField {
	lib := s.lib
	var out []models.ExtractedField

	// Spans already claimed by plates, IDs and dates
	var taken []patterns.Match
	taken = append(taken, patterns.FindAll(lib.Placa, text)...)
	taken = append(taken, lib.CedulaCandidates(text, nil)...)
	dates := lib.Dates(text)
	taken = append(taken, dates...)

	out = append(out, s.brandAndModel(text)...)

	if f, ok := s.year(text, taken); ok {
		out = append(out, f)
	}

	out = append(out, s.engineAndChassis(text, taken)...)

	for _, kw := range []struct {
		set  *patterns.Keywords
		name string
		typ  models.FieldType
	}{
		{lib.Combustibles, FieldCombustible, models.FieldCombustible},
		{lib.Transmisiones, FieldTransmision, models.FieldTransmision},
	} {
		if word, at, ok := kw.set.Find(text); ok {
			out = append(out, lib.NewField(kw.name, kw.typ, patterns.Fold(word), at, at+len(word)))
		}
	}
	if f, ok := s.color(text); ok {
		out = append(out, f)
	}

	out = append(out, amountsByContext(lib, text, lib.PrecioKeywords)...)
	out = append(out, paymentFields(lib, text)...)

	transfer := patterns.NewContext(text, lib.Window(), lib.TransferKeywords)
	for _, d := range dates {
		if transfer.Near(lib.TransferKeywords.Label, d.Start, d.End) {
			out = append(out, lib.FieldFromMatch(FieldFechaTransferencia, models.FieldFecha, d))
		}
	}
	return out
}

// brandAndModel reads brands from the closed brand list. The model comes
// from an explicit MODELO label when present, else from the word following
// the first brand at a lower confidence.
func (s *ScreenshotExtractor) brandAndModel(text string) []models.ExtractedField {
	lib := s.lib
	var out []models.ExtractedField

	brands := patterns.FindAll(lib.Marca, text)
	for _, m := range brands {
		m.Value = strings.Join(strings.Fields(patterns.Fold(m.Value)), " ")
		out = append(out, lib.FieldFromMatch(FieldMarca, models.FieldMarca, m))
	}

	labeled := false
	for _, m := range patterns.FindAll(lib.Modelo, text) {
		if isYear(m.Value) {
			continue
		}
		labeled = true
		out = append(out, lib.FieldFromMatch(FieldModelo, models.FieldModelo, m))
	}
	if labeled || len(brands) == 0 {
		return out
	}

	b := brands[0]
	loc := nextWord.FindStringSubmatchIndex(text[b.End:])
	if loc == nil {
		return out
	}
	word := text[b.End+loc[2] : b.End+loc[3]]
	if isYear(word) || lib.DomainKeywords.In(word) || lib.Placa.MatchString(word) {
		return out
	}
	f := lib.NewField(FieldModelo, models.FieldModelo, strings.ToUpper(word), b.End+loc[2], b.End+loc[3])
	return append(out, patterns.Scale(f, 0.85))
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

// year picks one model year: a plausible four digit year outside the claimed
// spans, preferring one near a year keyword.
func (s *ScreenshotExtractor) year(text string, taken []patterns.Match) (models.ExtractedField, bool) {
	lib := s.lib
	ctx := patterns.NewContext(text, lib.Window(), lib.AnioKeywords)
	now := s.now()

	var best *patterns.Match
	bestNear := false
	for _, m := range patterns.FindAll(lib.Anio, text) {
		if m.Overlaps(taken) {
			continue
		}
		y, err := strconv.Atoi(m.Value)
		if err != nil || !patterns.ValidateYear(y, now) {
			continue
		}
		near := ctx.Near(lib.AnioKeywords.Label, m.Start, m.End)
		if best == nil || (near && !bestNear) {
			best, bestNear = &m, near
		}
	}
	if best == nil {
		return models.ExtractedField{}, false
	}
	f := lib.FieldFromMatch(FieldAnio, models.FieldAnio, *best)
	if bestNear {
		f = patterns.Boost(f, 0.1)
	}
	return f, true
}

// engineAndChassis reads VINs anywhere and other alphanumeric codes only when
// the nearest keyword is MOTOR or CHASIS.
func (s *ScreenshotExtractor) engineAndChassis(text string, taken []patterns.Match) []models.ExtractedField {
	lib := s.lib
	ctx := patterns.NewContext(text, lib.Window(),
		lib.MotorKeywords, lib.ChasisKeywords, lib.PlacaKeywords, lib.CedulaKeywords, lib.AnioKeywords)

	var out []models.ExtractedField
	var vins []patterns.Match
	for _, m := range patterns.FindAll(lib.VIN, text) {
		if !hasDigit(m.Value) || !hasLetter(m.Value) {
			continue
		}
		vins = append(vins, m)
		f := lib.FieldFromMatch(FieldChasis, models.FieldChasis, m)
		if ctx.Near(lib.ChasisKeywords.Label, m.Start, m.End) {
			f = patterns.Boost(f, 0.1)
		}
		out = append(out, f)
	}

	for _, m := range patterns.FindAll(lib.CodigoMotor, text) {
		if !hasDigit(m.Value) || m.Overlaps(taken) || m.Overlaps(vins) {
			continue
		}
		label, _, ok := ctx.Nearest(m.Start, m.End)
		if !ok {
			continue
		}
		switch label {
		case lib.MotorKeywords.Label:
			out = append(out, lib.FieldFromMatch(FieldMotor, models.FieldMotor, m))
		case lib.ChasisKeywords.Label:
			out = append(out, lib.FieldFromMatch(FieldChasis, models.FieldChasis, m))
		}
	}
	return out
}

// color prefers a color word near a COLOR label and otherwise takes the
// first color word at a lower confidence.
func (s *ScreenshotExtractor) color(text string) (models.ExtractedField, bool) {
	lib := s.lib
	ctx := patterns.NewContext(text, lib.Window(), lib.ColorKeywords)

	hits := lib.Colores.FindAll(text)
	if len(hits) == 0 {
		return models.ExtractedField{}, false
	}
	for _, h := range hits {
		if ctx.Near(lib.ColorKeywords.Label, h[0], h[1]) {
			return lib.NewField(FieldColor, models.FieldColor, patterns.Fold(text[h[0]:h[1]]), h[0], h[1]), true
		}
	}
	h := hits[0]
	f := lib.NewField(FieldColor, models.FieldColor, patterns.Fold(text[h[0]:h[1]]), h[0], h[1])
	return patterns.Scale(f, 0.8), true
}

package extraction

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"notaria/internal/detect"
	"notaria/internal/logger"
	"notaria/internal/patterns"
	"notaria/internal/textlayer"
	"notaria/pkg/models"
)

// PDFExtractor handles extractos and diligencias. The text layer comes from
// a textlayer.Provider; everything after that works on plain text.
type PDFExtractor struct {
	provider textlayer.Provider
	lib      *patterns.Library
	detector *detect.Detector
	log      zerolog.Logger
}

// NewPDFExtractor creates a PDF extractor. A nil lib or detector uses the
// defaults.
func NewPDFExtractor(provider textlayer.Provider, lib *patterns.Library, detector *detect.Detector) *PDFExtractor {
	if lib == nil {
		lib = patterns.Default()
	}
	if detector == nil {
		detector = detect.New(detect.DefaultConfig())
	}
	return &PDFExtractor{
		provider: provider,
		lib:      lib,
		detector: detector,
		log:      logger.WithComponent("pdf-extractor"),
	}
}

// Name implements Extractor.
func (p *PDFExtractor) Name() string {
	return "pdf"
}

// Supports implements Extractor.
func (p *PDFExtractor) Supports(t models.DocumentType) bool {
	return t.IsPDF()
}

// ValidateInput checks that path is a non-empty file starting with a PDF header.
func (p *PDFExtractor) ValidateInput(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return WrapExtractionError("ValidateInput", path, ErrFileNotFound)
		}
		return WrapExtractionError("ValidateInput", path, err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return WrapExtractionError("ValidateInput", path, err)
	}
	if n == 0 {
		return WrapExtractionError("ValidateInput", path, ErrEmptyFile)
	}
	if !bytes.Contains(head[:n], []byte("%PDF-")) {
		return WrapExtractionError("ValidateInput", path, ErrInvalidPDF)
	}
	return nil
}

// Metadata implements Extractor. The page count is best effort.
func (p *PDFExtractor) Metadata(path string) (models.DocumentMetadata, error) {
	meta, err := fileMetadata(path)
	if err != nil {
		return meta, err
	}
	meta.MimeType = "application/pdf"
	if pages, err := textlayer.CountPages(path); err == nil {
		meta.PageCount = pages
	}
	return meta, nil
}

// Extract reads the text layer of the PDF at path and extracts its fields.
func (p *PDFExtractor) Extract(ctx context.Context, path string, opts models.ProcessingOptions) (res models.ExtractionResult) {
	started := time.Now()
	docType := p.documentType(opts, "", path)
	defer func() {
		if v := recover(); v != nil {
			res = recovered(p.log, docType, models.TramiteOtro, path, v, started)
		}
	}()

	doc, err := p.provider.ExtractText(ctx, path)
	if err != nil {
		return fail(p.log, docType, detect.TramiteType(path, docType), path, WrapExtractionError("Extract", path, err), started)
	}

	res = p.extract(doc.Text, path, opts, started)
	res.Metadata.PageCount = doc.Pages
	res.Metadata.Warnings = append(res.Metadata.Warnings, doc.Warnings...)
	res.Metadata.Extra = map[string]string{"textProvider": doc.Provider}
	return res
}

// ExtractFromText runs the text stages on an already extracted text layer.
// Without a file the document type comes from the text or the default.
func (p *PDFExtractor) ExtractFromText(text string, opts models.ProcessingOptions) (res models.ExtractionResult) {
	started := time.Now()
	defer func() {
		if v := recover(); v != nil {
			res = recovered(p.log, detect.DefaultDocumentType, models.TramiteOtro, "", v, started)
		}
	}()
	return p.extract(text, "", opts, started)
}

func (p *PDFExtractor) extract(text, path string, opts models.ProcessingOptions, started time.Time) models.ExtractionResult {
	if strings.TrimSpace(text) == "" {
		docType := p.documentType(opts, "", path)
		res := fail(p.log, docType, detect.TramiteType(path, docType), path, ErrNoTextContent, started)
		res.Metadata.Extractor = p.Name()
		return res
	}

	docType := p.documentType(opts, text, path)
	tramite := detect.TramiteType(text, docType)

	fields := p.lib.ExtractCommon(text)
	if docType == models.DocumentTypePDFDiligencia {
		fields = append(fields, p.diligenciaFields(text)...)
	} else {
		fields = append(fields, p.extractoFields(text)...)
	}
	fields = append(fields, entityFields(p.lib, text)...)
	fields = append(fields, locationFields(p.lib, text)...)

	// Order-of-appearance roles only make sense for a sale
	var defaults []string
	if tramite == models.TramiteCompraventa {
		defaults = p.lib.Config().DefaultRoles
	}
	fields = append(fields, roleFields(p.lib, text, defaults)...)

	res := finish(p.lib, docType, tramite, fields, opts, started)
	res.Metadata.Extractor = p.Name()
	res.Metadata.DetectedType = docType
	res.Metadata.TextLength = utf8.RuneCountInString(text)

	p.log.Debug().
		Str("document_type", string(docType)).
		Str("tramite", string(tramite)).
		Int("fields", len(res.Fields)).
		Float64("confidence", res.Confidence).
		Msg("PDF text extracted")
	return res
}

// documentType prefers a forced PDF type, then text indicators, then the
// trámite named in the text, then the file heuristics, then the default.
func (p *PDFExtractor) documentType(opts models.ProcessingOptions, text, path string) models.DocumentType {
	if opts.ForceDocumentType.IsPDF() {
		return opts.ForceDocumentType
	}
	if text != "" {
		if t, ok := detect.PDFTypeFromText(text); ok {
			return t
		}
		switch detect.TramiteType(text, models.DocumentTypePDFExtracto) {
		case models.TramiteOtro:
		case models.TramiteDiligencia:
			return models.DocumentTypePDFDiligencia
		default:
			// A sale, donation, company or trust deed is summarized by an extracto
			// whatever the file size.
			return models.DocumentTypePDFExtracto
		}
	}
	if path != "" {
		if t := p.detector.DocumentType(path); t.IsPDF() {
			return t
		}
	}
	return detect.DefaultDocumentType
}

// extractoFields covers the deed artifacts: article 29 markers, escritura,
// repertorio and folio numbers, operation value, cuantía and payment form.
func (p *PDFExtractor) extractoFields(text string) []models.ExtractedField {
	lib := p.lib
	var out []models.ExtractedField

	for _, m := range patterns.FindAll(lib.Articulo29, text) {
		out = append(out, lib.FieldFromMatch(FieldArticulo29, models.FieldArticulo29, m))
	}
	for _, m := range patterns.FindAll(lib.Escritura, text) {
		out = append(out, lib.FieldFromMatch(FieldNumeroEscritura, models.FieldNumeroNotarial, m))
	}
	for _, m := range patterns.FindAll(lib.Repertorio, text) {
		m.Value = strings.TrimRight(m.Value, ".-")
		out = append(out, lib.FieldFromMatch(FieldRepertorio, models.FieldNumeroNotarial, m))
	}
	for _, m := range patterns.FindAll(lib.Folio, text) {
		out = append(out, lib.FieldFromMatch(FieldFolio, models.FieldNumeroNotarial, m))
	}

	out = append(out, amountsByContext(lib, text, lib.ValorOperacionKeywords, lib.CuantiaKeywords)...)
	out = append(out, paymentFields(lib, text)...)
	return out
}

// diligenciaFields covers the declarants, the stated purpose and any
// operation value or cuantía.
func (p *PDFExtractor) diligenciaFields(text string) []models.ExtractedField {
	lib := p.lib
	var out []models.ExtractedField

	for _, m := range lib.Names(lib.Declarante, text) {
		out = append(out, lib.FieldFromMatch(RoleField(patterns.RoleDeclarante, "nombre"), models.FieldNombre, m))
	}
	for _, m := range patterns.FindAll(lib.Objeto, text) {
		m.Value = strings.Join(strings.Fields(m.Value), " ")
		out = append(out, lib.FieldFromMatch(FieldObjeto, models.FieldTexto, m))
	}
	out = append(out, amountsByContext(lib, text, lib.ValorOperacionKeywords, lib.CuantiaKeywords)...)
	return out
}

// Package detect classifies inputs into document and transaction (trámite)
// types. Detection never fails: unreadable inputs degrade to the defaults.
package detect

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"notaria/internal/logger"
	"notaria/internal/patterns"
	"notaria/internal/textlayer"
	"notaria/pkg/models"
)

// DefaultDocumentType is returned whenever a PDF cannot be classified.
const DefaultDocumentType = models.DocumentTypePDFExtracto

// imageExtensions are raster formats routed to the screenshot extractor.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true, ".gif": true,
}

// Filename indicators, checked diligencia first.
var (
	diligenciaNameKeywords = []string{"DILIGENCIA", "RECONOCIMIENTO", "DECLARACION JURAMENTADA", "DECLARACION", "JURAMENTADA"}
	extractoNameKeywords   = []string{"EXTRACTO", "ESCRITURA", "MINUTA", "PROTOCOLO", "MATRIZ"}
)

// Text indicators, checked diligencia first. Kept to phrases that an
// escritura would not use in passing.
var (
	diligenciaTextKeywords = []string{"DILIGENCIA DE RECONOCIMIENTO", "RECONOCIMIENTO DE FIRMA", "RECONOCIMIENTO DE FIRMAS",
		"DECLARACION JURAMENTADA", "DILIGENCIA"}
	extractoTextKeywords = []string{"EXTRACTO", "ESCRITURA PUBLICA", "REPERTORIO", "CUANTIA", "ARTICULO 29", "ART. 29"}
)

// tramiteGroup is one entry of the ordered trámite scan.
type tramiteGroup struct {
	tramite  models.TramiteType
	keywords []string
}

// tramiteGroups are scanned in order; the first group with a hit wins.
var tramiteGroups = []tramiteGroup{
	{models.TramiteCompraventa, []string{"COMPRAVENTA", "COMPRA VENTA", "COMPRA-VENTA", "CONTRATO DE VENTA", "PROMESA DE VENTA"}},
	{models.TramiteDonacion, []string{"DONACION", "DONANTE", "DONATARIO", "DONATARIA"}},
	{models.TramiteConstitucionSociedad, []string{"CONSTITUCION DE SOCIEDAD", "CONSTITUCION DE COMPANIA", "CONSTITUCION DE LA COMPANIA",
		"CONSTITUCION", "SOCIEDAD ANONIMA", "COMPANIA LIMITADA", "CIA. LTDA", "S.A.S"}},
	{models.TramiteFideicomiso, []string{"FIDEICOMISO", "FIDUCIARIA", "FIDEICOMITENTE", "FIDUCIA"}},
	{models.TramiteConsorcio, []string{"CONSORCIO", "CONSORCIADOS"}},
	{models.TramiteDiligencia, []string{"DILIGENCIA", "RECONOCIMIENTO DE FIRMA", "DECLARACION JURAMENTADA"}},
}

// Config holds the PDF metadata heuristics.
type Config struct {
	// PDFs smaller than this with no name indicator are diligencias.
	DiligenciaMaxBytes int64
	// PDFs with more pages than this with no name indicator are extractos.
	ExtractoMinPages int
}

// DefaultConfig returns 100KB and 3 pages.
func DefaultConfig() Config {
	return Config{DiligenciaMaxBytes: 100 * 1024, ExtractoMinPages: 3}
}

// Detector classifies files and texts.
type Detector struct {
	cfg        Config
	countPages func(path string) (int, error)
	log        zerolog.Logger
}

// New creates a detector that counts pages with textlayer.CountPages.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg, countPages: textlayer.CountPages, log: logger.WithComponent("detect")}
}

// IsImage reports whether path has a raster image extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// DocumentType classifies a file by extension, then by filename keywords and
// finally by size and page count.
func (d *Detector) DocumentType(path string) models.DocumentType {
	if IsImage(path) {
		return models.DocumentTypeScreenshotVehiculo
	}

	if t, ok := typeFromName(path); ok {
		return t
	}

	info, err := os.Stat(path)
	if err != nil {
		d.log.Debug().Err(err).Str("path", path).Msg("stat failed, using default document type")
		return DefaultDocumentType
	}
	if info.Size() < d.cfg.DiligenciaMaxBytes {
		return models.DocumentTypePDFDiligencia
	}

	pages, err := d.countPages(path)
	if err != nil {
		d.log.Debug().Err(err).Str("path", path).Msg("page count failed, using default document type")
		return DefaultDocumentType
	}
	if pages > d.cfg.ExtractoMinPages {
		return models.DocumentTypePDFExtracto
	}
	return DefaultDocumentType
}

func typeFromName(path string) (models.DocumentType, bool) {
	name := patterns.Fold(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if containsAny(name, diligenciaNameKeywords) {
		return models.DocumentTypePDFDiligencia, true
	}
	if containsAny(name, extractoNameKeywords) {
		return models.DocumentTypePDFExtracto, true
	}
	return "", false
}

// PDFTypeFromText classifies extracted PDF text. ok is false when the text
// carries no indicator of either type.
func PDFTypeFromText(text string) (t models.DocumentType, ok bool) {
	folded := patterns.Fold(text)
	if containsAny(folded, diligenciaTextKeywords) {
		return models.DocumentTypePDFDiligencia, true
	}
	if containsAny(folded, extractoTextKeywords) {
		return models.DocumentTypePDFExtracto, true
	}
	return "", false
}

// TramiteType returns VEHICULO for vehicle inputs and otherwise the first
// keyword group found in textOrPath. For a file path only the file name is
// scanned.
func TramiteType(textOrPath string, docType models.DocumentType) models.TramiteType {
	if docType == models.DocumentTypeScreenshotVehiculo || IsImage(textOrPath) {
		return models.TramiteVehiculo
	}

	subject := textOrPath
	if looksLikePath(textOrPath) {
		subject = strings.TrimSuffix(filepath.Base(textOrPath), filepath.Ext(textOrPath))
	}
	folded := patterns.Fold(subject)

	for _, g := range tramiteGroups {
		if containsAny(folded, g.keywords) {
			return g.tramite
		}
	}
	return models.TramiteOtro
}

// looksLikePath treats single-line strings ending in .pdf, or naming an
// existing file, as paths.
func looksLikePath(s string) bool {
	if s == "" || strings.ContainsAny(s, "\n\r") {
		return false
	}
	if strings.EqualFold(filepath.Ext(s), ".pdf") {
		return true
	}
	info, err := os.Stat(s)
	return err == nil && !info.IsDir()
}

func containsAny(folded string, keywords []string) bool {
	for _, kw := range keywords {
		if patterns.ContainsWord(folded, kw) {
			return true
		}
	}
	return false
}

package models

import "time"

// DocumentType identifies the class of input handled by an extractor.
type DocumentType string

const (
	DocumentTypePDFExtracto        DocumentType = "PDF_EXTRACTO"
	DocumentTypePDFDiligencia      DocumentType = "PDF_DILIGENCIA"
	DocumentTypeScreenshotVehiculo DocumentType = "SCREENSHOT_VEHICULO"
)

// DocumentTypes lists every supported document type in registry order.
var DocumentTypes = []DocumentType{
	DocumentTypePDFExtracto,
	DocumentTypePDFDiligencia,
	DocumentTypeScreenshotVehiculo,
}

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsPDF reports whether the document type is backed by a PDF file.
func (t DocumentType) IsPDF() bool {
	return t == DocumentTypePDFExtracto || t == DocumentTypePDFDiligencia
}

// TramiteType is the legal transaction category of a document.
type TramiteType string

const (
	TramiteCompraventa          TramiteType = "COMPRAVENTA"
	TramiteDonacion             TramiteType = "DONACION"
	TramiteConstitucionSociedad TramiteType = "CONSTITUCION_SOCIEDAD"
	TramiteFideicomiso          TramiteType = "FIDEICOMISO"
	TramiteConsorcio            TramiteType = "CONSORCIO"
	TramiteDiligencia           TramiteType = "DILIGENCIA"
	TramiteVehiculo             TramiteType = "VEHICULO"
	TramiteOtro                 TramiteType = "OTRO"
)

// DocumentMetadata is a read-only snapshot of the input file taken once per call.
type DocumentMetadata struct {
	FileName   string      `json:"fileName"`
	FileSize   int64       `json:"fileSize"`
	MimeType   string      `json:"mimeType"`
	PageCount  int         `json:"pageCount,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
}

// Dimensions holds the pixel size of a raster input.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ProcessingOptions is the caller supplied options bag.
type ProcessingOptions struct {
	// ForceDocumentType overrides detection when set.
	ForceDocumentType DocumentType `json:"forceDocumentType,omitempty"`

	// EnhanceImage toggles the "enhanced" preprocessing variant. Nil means true.
	EnhanceImage *bool `json:"enhanceImage,omitempty"`

	// MinConfidence drops fields scoring below it after deduplication.
	MinConfidence float64 `json:"minConfidence,omitempty"`

	// ExtractImages is accepted for compatibility; PDF rendering is not performed.
	ExtractImages bool `json:"extractImages,omitempty"`

	// OCRLanguage overrides the OCR worker language (e.g. "spa", "spa+eng").
	OCRLanguage string `json:"ocrLanguage,omitempty"`
}

// Enhance reports whether the enhanced preprocessing variant should run.
func (o ProcessingOptions) Enhance() bool {
	return o.EnhanceImage == nil || *o.EnhanceImage
}

// Bool returns a pointer to b, for optional option fields.
func Bool(b bool) *bool {
	return &b
}

// ResultMetadata carries processing details stamped on an ExtractionResult.
type ResultMetadata struct {
	RequestID    string            `json:"requestId,omitempty"`
	FileName     string            `json:"fileName,omitempty"`
	FileSize     int64             `json:"fileSize,omitempty"`
	MimeType     string            `json:"mimeType,omitempty"`
	PageCount    int               `json:"pageCount,omitempty"`
	Dimensions   *Dimensions       `json:"dimensions,omitempty"`
	DetectedType DocumentType      `json:"detectedType,omitempty"`
	Extractor    string            `json:"extractor,omitempty"`
	TextLength   int               `json:"textLength,omitempty"`
	BestVariant  string            `json:"bestVariant,omitempty"`
	OCRScore     float64           `json:"ocrScore,omitempty"`
	ProcessedAt  time.Time         `json:"processedAt"`
	Warnings     []string          `json:"warnings,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// ExtractionResult is the single value returned by every extraction call.
// When Success is false, Confidence is 0 and Fields is empty.
type ExtractionResult struct {
	DocumentType     DocumentType     `json:"documentType"`
	TramiteType      TramiteType      `json:"tramiteType"`
	Fields           []ExtractedField `json:"fields"`
	StructuredData   StructuredData   `json:"structuredData"`
	Confidence       float64          `json:"confidence"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
	Success          bool             `json:"success"`
	Error            string           `json:"error,omitempty"`
	Metadata         ResultMetadata   `json:"metadata"`
}

// FailedResult builds a well-formed failed result for the given error message.
func FailedResult(docType DocumentType, tramite TramiteType, msg string, started time.Time) ExtractionResult {
	if tramite == "" {
		tramite = TramiteOtro
	}
	return ExtractionResult{
		DocumentType:     docType,
		TramiteType:      tramite,
		Fields:           []ExtractedField{},
		Confidence:       0,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
		Success:          false,
		Error:            msg,
		Metadata:         ResultMetadata{ProcessedAt: time.Now()},
	}
}

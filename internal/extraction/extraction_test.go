package extraction

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"notaria/internal/ocr"
	"notaria/internal/patterns"
	"notaria/internal/preprocess"
	"notaria/internal/textlayer"
	"notaria/pkg/models"
)

const (
	compraventaText = "EXTRACTO\nCOMPRAVENTA de inmueble\nVALOR DE LA OPERACION $85,000.00\nCEDULA 1710034065\n"
	vehicleOCRText  = "TOYOTA COROLLA 2019 PLACA ABC-1234 MOTOR 3ZZ1234567 COMPRADOR CI 1710034065"
)

type fakeProvider struct {
	doc *textlayer.Document
	err error
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Close() error { return nil }
func (f *fakeProvider) ExtractText(ctx context.Context, path string) (*textlayer.Document, error) {
	return f.doc, f.err
}

type fakeEngine struct {
	text       string
	err        error
	recognized atomic.Int32
	terminated atomic.Int32
}

func (f *fakeEngine) Recognize(ctx context.Context, path string, opts ocr.Options) (*ocr.Result, error) {
	f.recognized.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.Result{Text: f.text, Confidence: 0.9, Backend: "fake"}, nil
}

func (f *fakeEngine) Terminate(ctx context.Context) error {
	f.terminated.Add(1)
	return nil
}

func findField(fields []models.ExtractedField, name string) (models.ExtractedField, bool) {
	for _, f := range fields {
		if f.FieldName == name {
			return f, true
		}
	}
	return models.ExtractedField{}, false
}

func assertFailed(t *testing.T, res models.ExtractionResult) {
	t.Helper()
	if res.Success {
		t.Fatalf("expected a failed result, got success with %d fields", len(res.Fields))
	}
	if res.Confidence != 0 || res.Fields == nil || len(res.Fields) != 0 {
		t.Errorf("failed result must have confidence 0 and empty fields, got %v / %#v", res.Confidence, res.Fields)
	}
	if res.Error == "" {
		t.Error("failed result must carry an error message")
	}
}

func TestPDFExtractFromTextCompraventa(t *testing.T) {
	p := NewPDFExtractor(&fakeProvider{}, nil, nil)
	res := p.ExtractFromText(compraventaText, models.ProcessingOptions{})

	if !res.Success {
		t.Fatalf("extraction failed: %s", res.Error)
	}
	if res.DocumentType != models.DocumentTypePDFExtracto {
		t.Errorf("DocumentType = %s", res.DocumentType)
	}
	if res.TramiteType != models.TramiteCompraventa {
		t.Errorf("TramiteType = %s", res.TramiteType)
	}

	ced, ok := findField(res.Fields, "cedula")
	if !ok {
		t.Fatal("no cedula field")
	}
	if ced.Value != "1710034065" || ced.Confidence != 0.95 || ced.ValidationStatus != models.ValidationValid {
		t.Errorf("cedula = %+v", ced)
	}

	if res.StructuredData.Notarial == nil {
		t.Fatal("no notarial data")
	}
	if got := res.StructuredData.Notarial.ValorOperacion; got != "$85,000.00" {
		t.Errorf("ValorOperacion = %q", got)
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		t.Errorf("Confidence = %v out of range", res.Confidence)
	}

	// Sale without role keywords: the first ID defaults to the buyer
	if _, ok := findField(res.Fields, "comprador_cedula"); !ok {
		t.Error("expected a default comprador_cedula field")
	}
}

// A small file with a neutral name and no type indicator in its text is
// still a deed summary when the text names a sale.
func TestPDFExtractCompraventaWithoutIndicator(t *testing.T) {
	text := "COMPRAVENTA de inmueble\nVALOR DE LA OPERACION $85,000.00\nCEDULA 1710034065\n"
	path := filepath.Join(t.TempDir(), "documento.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 small"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := NewPDFExtractor(&fakeProvider{doc: &textlayer.Document{Text: text, Pages: 1, Provider: "fake"}}, nil, nil)

	res := p.Extract(context.Background(), path, models.ProcessingOptions{})
	if !res.Success {
		t.Fatalf("extraction failed: %s", res.Error)
	}
	if res.DocumentType != models.DocumentTypePDFExtracto || res.TramiteType != models.TramiteCompraventa {
		t.Errorf("types = %s / %s, want PDF_EXTRACTO / COMPRAVENTA", res.DocumentType, res.TramiteType)
	}
	if res.StructuredData.Notarial == nil || res.StructuredData.Notarial.ValorOperacion != "$85,000.00" {
		t.Errorf("notarial = %+v", res.StructuredData.Notarial)
	}
	if ced, ok := findField(res.Fields, "cedula"); !ok || ced.Confidence != 0.95 {
		t.Errorf("cedula = %+v, %v", ced, ok)
	}
}

func TestPDFOperationValueOnEveryType(t *testing.T) {
	text := "VALOR DE LA OPERACION $85,000.00\nCEDULA 1710034065\n"
	p := NewPDFExtractor(&fakeProvider{}, nil, nil)

	for _, docType := range []models.DocumentType{models.DocumentTypePDFExtracto, models.DocumentTypePDFDiligencia} {
		res := p.ExtractFromText(text, models.ProcessingOptions{ForceDocumentType: docType})
		f, ok := findField(res.Fields, FieldValorOperacion)
		if !ok || f.Value != "$85,000.00" {
			t.Errorf("%s: %s = %+v, %v", docType, FieldValorOperacion, f, ok)
		}
	}
}

func TestPDFGuayasCedulaHasNoPhone(t *testing.T) {
	p := NewPDFExtractor(&fakeProvider{}, nil, nil)
	res := p.ExtractFromText("COMPRAVENTA DE INMUEBLE\nCOMPRADOR JUAN PEREZ CEDULA 0912345675\n", models.ProcessingOptions{})
	if !res.Success {
		t.Fatalf("extraction failed: %s", res.Error)
	}
	if f, ok := findField(res.Fields, "telefono"); ok {
		t.Errorf("unexpected telefono field %+v", f)
	}
	if f, ok := findField(res.Fields, "comprador_cedula"); !ok || f.Value != "0912345675" {
		t.Errorf("comprador_cedula = %+v, %v", f, ok)
	}
	for _, person := range res.StructuredData.Persons {
		if person.Telefono != "" {
			t.Errorf("person %+v carries the cédula as a phone", person)
		}
	}
}

func TestPDFExtractDiligencia(t *testing.T) {
	text := "DILIGENCIA DE RECONOCIMIENTO DE FIRMAS\n" +
		"Comparece el señor JUAN CARLOS PEREZ LOPEZ con cédula 1710034065, " +
		"con el objeto de reconocer su firma en el documento adjunto.\n" +
		"NOTARIA TERCERA DEL CANTON QUITO, PROVINCIA DE PICHINCHA\n"
	p := NewPDFExtractor(&fakeProvider{doc: &textlayer.Document{Text: text, Pages: 1, Provider: "fake"}}, nil, nil)

	res := p.Extract(context.Background(), "/tmp/doc.pdf", models.ProcessingOptions{})
	if !res.Success {
		t.Fatalf("extraction failed: %s", res.Error)
	}
	if res.DocumentType != models.DocumentTypePDFDiligencia || res.TramiteType != models.TramiteDiligencia {
		t.Errorf("types = %s / %s", res.DocumentType, res.TramiteType)
	}
	if res.Metadata.PageCount != 1 || res.Metadata.Extractor != "pdf" {
		t.Errorf("metadata = %+v", res.Metadata)
	}

	if f, ok := findField(res.Fields, "declarante_nombre"); !ok || f.Value != "JUAN CARLOS PEREZ LOPEZ" {
		t.Errorf("declarante_nombre = %+v, %v", f, ok)
	}
	n := res.StructuredData.Notarial
	if n == nil {
		t.Fatal("no notarial data")
	}
	if n.Provincia != "PICHINCHA" || n.Canton != "QUITO" || n.Notaria != "TERCERA" {
		t.Errorf("notarial = %+v", n)
	}
	if !strings.Contains(n.Objeto, "reconocer su firma") {
		t.Errorf("Objeto = %q", n.Objeto)
	}
}

func TestPDFForcedTypeWins(t *testing.T) {
	p := NewPDFExtractor(&fakeProvider{}, nil, nil)
	res := p.ExtractFromText(compraventaText, models.ProcessingOptions{ForceDocumentType: models.DocumentTypePDFDiligencia})
	if res.DocumentType != models.DocumentTypePDFDiligencia {
		t.Errorf("DocumentType = %s, want forced diligencia", res.DocumentType)
	}
}

func TestPDFEmptyTextLayer(t *testing.T) {
	p := NewPDFExtractor(&fakeProvider{doc: &textlayer.Document{Text: "  \n\f\n"}}, nil, nil)

	res := p.Extract(context.Background(), "/tmp/escaneado.pdf", models.ProcessingOptions{})
	assertFailed(t, res)
	if res.Error != "No text content found in PDF" {
		t.Errorf("Error = %q", res.Error)
	}

	res = p.ExtractFromText("", models.ProcessingOptions{})
	assertFailed(t, res)
}

func TestPDFProviderError(t *testing.T) {
	p := NewPDFExtractor(&fakeProvider{err: textlayer.WrapProviderError("pdftotext", "ExtractText", textlayer.ErrInvalidPDF, "")}, nil, nil)
	res := p.Extract(context.Background(), "/tmp/roto.pdf", models.ProcessingOptions{})
	assertFailed(t, res)
	if !strings.Contains(res.Error, "invalid") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestPDFValidateInput(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	p := NewPDFExtractor(&fakeProvider{}, nil, nil)

	if err := p.ValidateInput(write("ok.pdf", "%PDF-1.7\n...")); err != nil {
		t.Errorf("valid PDF rejected: %v", err)
	}
	if err := p.ValidateInput(write("empty.pdf", "")); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}
	if err := p.ValidateInput(write("text.pdf", "hello")); !errors.Is(err, ErrInvalidPDF) {
		t.Errorf("expected ErrInvalidPDF, got %v", err)
	}
	if err := p.ValidateInput(filepath.Join(dir, "missing.pdf")); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestScreenshotExtractFromOCRText(t *testing.T) {
	s := NewScreenshotExtractor(nil, nil, nil)
	res := s.ExtractFromOCRText(vehicleOCRText, models.ProcessingOptions{})

	if !res.Success {
		t.Fatalf("extraction failed: %s", res.Error)
	}
	if res.DocumentType != models.DocumentTypeScreenshotVehiculo || res.TramiteType != models.TramiteVehiculo {
		t.Errorf("types = %s / %s", res.DocumentType, res.TramiteType)
	}

	v := res.StructuredData.Vehicle
	if v == nil {
		t.Fatal("no vehicle data")
	}
	tests := []struct{ name, got, want string }{
		{"marca", v.Marca, "TOYOTA"},
		{"modelo", v.Modelo, "COROLLA"},
		{"anio", v.Anio, "2019"},
		{"placa", v.Placa, "ABC-1234"},
		{"motor", v.Motor, "3ZZ1234567"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if v.Comprador == nil || v.Comprador.Cedula != "1710034065" {
		t.Errorf("Comprador = %+v", v.Comprador)
	}
}

func TestScreenshotVehicleKeywords(t *testing.T) {
	text := "MARCA: CHEVROLET MODELO: AVEO FAMILY\nAÑO 2015 COLOR: PLATEADO\nCOMBUSTIBLE GASOLINA TRANSMISION MANUAL\n" +
		"CHASIS 8LATC5FA4F0123456\nPRECIO $9.500,00 FORMA DE PAGO: CONTADO\nFECHA DE TRANSFERENCIA 15/03/2023\n" +
		"VENDEDOR CI 1710034065"
	s := NewScreenshotExtractor(nil, nil, nil)
	res := s.ExtractFromOCRText(text, models.ProcessingOptions{})

	v := res.StructuredData.Vehicle
	if v == nil {
		t.Fatal("no vehicle data")
	}
	tests := []struct{ name, got, want string }{
		{"marca", v.Marca, "CHEVROLET"},
		{"modelo", v.Modelo, "AVEO FAMILY"},
		{"anio", v.Anio, "2015"},
		{"color", v.Color, "PLATEADO"},
		{"combustible", v.Combustible, "GASOLINA"},
		{"transmision", v.Transmision, "MANUAL"},
		{"chasis", v.Chasis, "8LATC5FA4F0123456"},
		{"precio", v.Precio, "$9.500,00"},
		{"formaPago", v.FormaPago, "CONTADO"},
		{"fechaTransferencia", v.FechaTransfer, "2023-03-15"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if v.Vendedor == nil || v.Vendedor.Cedula != "1710034065" {
		t.Errorf("Vendedor = %+v", v.Vendedor)
	}
	if v.Comprador != nil {
		t.Errorf("labeled seller must not fill the buyer, got %+v", v.Comprador)
	}
}

func writeScreenshot(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	p := filepath.Join(dir, "captura.png")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestScreenshotExtractTerminatesEngine(t *testing.T) {
	dir := t.TempDir()
	tmp := t.TempDir()
	cfg := preprocess.DefaultConfig()
	cfg.TempDir = tmp
	pipeline := preprocess.NewPipeline(cfg, patterns.Default())

	t.Run("success", func(t *testing.T) {
		engine := &fakeEngine{text: vehicleOCRText}
		s := NewScreenshotExtractor(func() OCREngine { return engine }, pipeline, nil)

		res := s.Extract(context.Background(), writeScreenshot(t, dir), models.ProcessingOptions{EnhanceImage: models.Bool(false)})
		if !res.Success {
			t.Fatalf("extraction failed: %s", res.Error)
		}
		if engine.terminated.Load() != 1 {
			t.Errorf("Terminate called %d times, want 1", engine.terminated.Load())
		}
		// standard, contrast and scaled: 400px is well below the 2000px target
		if got := engine.recognized.Load(); got != 3 {
			t.Errorf("recognized %d variants, want 3", got)
		}
		if res.Metadata.BestVariant != string(preprocess.VariantStandard) {
			t.Errorf("BestVariant = %q", res.Metadata.BestVariant)
		}
	})

	t.Run("recognition failure", func(t *testing.T) {
		engine := &fakeEngine{err: ocr.ErrRecognitionFailed}
		s := NewScreenshotExtractor(func() OCREngine { return engine }, pipeline, nil)

		res := s.Extract(context.Background(), writeScreenshot(t, dir), models.ProcessingOptions{})
		assertFailed(t, res)
		if engine.terminated.Load() != 1 {
			t.Errorf("Terminate called %d times, want 1", engine.terminated.Load())
		}
	})

	t.Run("unreadable image", func(t *testing.T) {
		bad := filepath.Join(dir, "roto.png")
		if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
			t.Fatal(err)
		}
		engine := &fakeEngine{}
		s := NewScreenshotExtractor(func() OCREngine { return engine }, pipeline, nil)

		if err := s.ValidateInput(bad); !errors.Is(err, ErrUnreadableImage) {
			t.Errorf("expected ErrUnreadableImage, got %v", err)
		}
		res := s.Extract(context.Background(), bad, models.ProcessingOptions{})
		assertFailed(t, res)
		if engine.terminated.Load() != 1 {
			t.Errorf("Terminate called %d times, want 1", engine.terminated.Load())
		}
	})

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("variant files left behind: %d", len(entries))
	}
}

func TestScreenshotEmptyOCRText(t *testing.T) {
	res := NewScreenshotExtractor(nil, nil, nil).ExtractFromOCRText(" \n ", models.ProcessingOptions{})
	assertFailed(t, res)
	if res.Error != ErrNoTextRecognized.Error() {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestMinConfidenceFiltersFields(t *testing.T) {
	s := NewScreenshotExtractor(nil, nil, nil)
	res := s.ExtractFromOCRText(vehicleOCRText, models.ProcessingOptions{MinConfidence: 0.9})
	if !res.Success {
		t.Fatalf("extraction failed: %s", res.Error)
	}
	for _, f := range res.Fields {
		if f.Confidence < 0.9 {
			t.Errorf("field %s below threshold: %v", f.FieldName, f.Confidence)
		}
	}
	if _, ok := findField(res.Fields, "placa"); !ok {
		t.Error("placa (0.9) should survive a 0.9 threshold")
	}
}

func loc(offset, length int) *models.Location {
	return &models.Location{Offset: offset, Length: length}
}

func TestBuildStructuredData(t *testing.T) {
	fields := []models.ExtractedField{
		{FieldName: "vendedor_cedula", Value: "1710034065", Location: loc(20, 10)},
		{FieldName: "comprador_cedula", Value: "0102030405", Location: loc(60, 10)},
		{FieldName: "vendedor_nombre", Value: "JUAN PEREZ", Location: loc(0, 10)},
		{FieldName: "telefono", Value: "0991234567", Location: loc(35, 10)},
		{FieldName: "razon_social", Value: "ACME S.A.", Location: loc(300, 9)},
		{FieldName: "ruc", Value: "1790012345001", Location: loc(315, 13)},
		{FieldName: "valor_operacion", Value: "$1,000.00", Location: loc(400, 9)},
		{FieldName: "articulo_29", Value: "ARTICULO 29", Location: loc(420, 11)},
	}
	sd := BuildStructuredData(fields, 100)

	if len(sd.Persons) != 2 {
		t.Fatalf("Persons = %+v", sd.Persons)
	}
	seller, buyer := sd.Persons[0], sd.Persons[1]
	if seller.Rol != "vendedor" || seller.Nombre != "JUAN PEREZ" || seller.Telefono != "0991234567" {
		t.Errorf("seller = %+v", seller)
	}
	if buyer.Rol != "comprador" || buyer.Nombre != "" || buyer.Telefono != "" {
		t.Errorf("buyer = %+v", buyer)
	}

	if len(sd.Companies) != 1 {
		t.Fatalf("Companies = %+v", sd.Companies)
	}
	if c := sd.Companies[0]; c.RUC != "1790012345001" || c.Tipo != "S.A." {
		t.Errorf("company = %+v", c)
	}

	if sd.Notarial == nil || sd.Notarial.ValorOperacion != "$1,000.00" || !sd.Notarial.Articulo29 {
		t.Errorf("Notarial = %+v", sd.Notarial)
	}
	if sd.Vehicle != nil {
		t.Errorf("Vehicle = %+v, want nil", sd.Vehicle)
	}
}

func TestBuildStructuredDataEmpty(t *testing.T) {
	if sd := BuildStructuredData(nil, 100); !sd.IsEmpty() {
		t.Errorf("expected empty structured data, got %+v", sd)
	}
}

func TestCompanyType(t *testing.T) {
	tests := map[string]string{
		"ACME S.A.":                "S.A.",
		"ANDES CIA. LTDA.":         "CIA. LTDA.",
		"NUEVA S.A.S.":             "S.A.S.",
		"FIDEICOMISO LOS ALAMOS":   "FIDEICOMISO",
		"CONSORCIO VIAL DEL NORTE": "CONSORCIO",
		"PEDRO PEREZ":              "",
	}
	for name, want := range tests {
		if got := CompanyType(name); got != want {
			t.Errorf("CompanyType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{WrapExtractionError("x", "p", ErrEmptyFile), KindInput},
		{ErrNoTextContent, KindInput},
		{ErrUnsupportedType, KindUnsupportedType},
		{errors.Join(preprocess.ErrNoUsableVariant, ocr.ErrRecognitionFailed), KindPreprocessing},
		{ocr.WrapRecognitionError("Recognize", "a.png", ocr.ErrRecognitionFailed, ""), KindRecognition},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

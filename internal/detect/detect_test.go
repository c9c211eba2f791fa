package detect

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notaria/pkg/models"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("%PDF-1.4\n"+strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDocumentType(t *testing.T) {
	dir := t.TempDir()
	d := New(DefaultConfig())
	d.countPages = func(path string) (int, error) {
		if strings.Contains(path, "grande") {
			return 12, nil
		}
		return 2, nil
	}

	tests := []struct {
		name string
		path string
		want models.DocumentType
	}{
		{"image", filepath.Join(dir, "captura.PNG"), models.DocumentTypeScreenshotVehiculo},
		{"jpeg", filepath.Join(dir, "matricula.jpeg"), models.DocumentTypeScreenshotVehiculo},
		{"diligencia by name", writeFile(t, dir, "diligencia_reconocimiento.pdf", 500*1024), models.DocumentTypePDFDiligencia},
		{"declaración by name", writeFile(t, dir, "Declaración Juramentada.pdf", 500*1024), models.DocumentTypePDFDiligencia},
		{"extracto by name", writeFile(t, dir, "extracto-compraventa.pdf", 10), models.DocumentTypePDFExtracto},
		{"small file", writeFile(t, dir, "documento1.pdf", 10*1024), models.DocumentTypePDFDiligencia},
		{"many pages", writeFile(t, dir, "grande.pdf", 200*1024), models.DocumentTypePDFExtracto},
		{"large few pages", writeFile(t, dir, "otro.pdf", 200*1024), models.DocumentTypePDFExtracto},
		{"missing file", filepath.Join(dir, "no-existe.pdf"), DefaultDocumentType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.DocumentType(tt.path); got != tt.want {
				t.Errorf("DocumentType(%s) = %s, want %s", filepath.Base(tt.path), got, tt.want)
			}
		})
	}
}

func TestDocumentTypePageCountFailure(t *testing.T) {
	d := New(DefaultConfig())
	d.countPages = func(string) (int, error) { return 0, errors.New("truncated") }
	path := writeFile(t, t.TempDir(), "archivo.pdf", 200*1024)

	if got := d.DocumentType(path); got != DefaultDocumentType {
		t.Errorf("DocumentType = %s, want default", got)
	}
}

func TestPDFTypeFromText(t *testing.T) {
	tests := []struct {
		text string
		want models.DocumentType
		ok   bool
	}{
		{"DILIGENCIA DE RECONOCIMIENTO DE FIRMAS. Ante mí comparece...", models.DocumentTypePDFDiligencia, true},
		{"EXTRACTO DE ESCRITURA PÚBLICA. Cuantía: $85,000.00", models.DocumentTypePDFExtracto, true},
		{"Repertorio No. 2023-1234", models.DocumentTypePDFExtracto, true},
		{"texto sin indicadores", "", false},
	}
	for _, tt := range tests {
		got, ok := PDFTypeFromText(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("PDFTypeFromText(%q) = %s, %v; want %s, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTramiteType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		docType models.DocumentType
		want    models.TramiteType
	}{
		{"screenshot type", "anything", models.DocumentTypeScreenshotVehiculo, models.TramiteVehiculo},
		{"image path", "/tmp/captura.jpg", models.DocumentTypePDFExtracto, models.TramiteVehiculo},
		{"compraventa", "ESCRITURA DE COMPRAVENTA DE INMUEBLE", models.DocumentTypePDFExtracto, models.TramiteCompraventa},
		{"donación accent", "escritura de donación a favor de", models.DocumentTypePDFExtracto, models.TramiteDonacion},
		{"sociedad", "CONSTITUCIÓN DE COMPAÑÍA LIMITADA", models.DocumentTypePDFExtracto, models.TramiteConstitucionSociedad},
		{"fideicomiso", "CONTRATO DE FIDEICOMISO MERCANTIL", models.DocumentTypePDFExtracto, models.TramiteFideicomiso},
		{"consorcio", "PROMESA DE CONSORCIO", models.DocumentTypePDFExtracto, models.TramiteConsorcio},
		{"diligencia", "DILIGENCIA DE RECONOCIMIENTO DE FIRMA", models.DocumentTypePDFDiligencia, models.TramiteDiligencia},
		{"first group wins", "COMPRAVENTA Y DONACION", models.DocumentTypePDFExtracto, models.TramiteCompraventa},
		{"word boundary", "COMPRAVENTAS", models.DocumentTypePDFExtracto, models.TramiteOtro},
		{"pdf path name", "/data/in/extracto_donacion_2023.pdf", models.DocumentTypePDFExtracto, models.TramiteDonacion},
		{"default", "PODER ESPECIAL", models.DocumentTypePDFExtracto, models.TramiteOtro},
		{"empty", "", models.DocumentTypePDFExtracto, models.TramiteOtro},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TramiteType(tt.input, tt.docType); got != tt.want {
				t.Errorf("TramiteType(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

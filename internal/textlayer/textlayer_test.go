package textlayer

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeRunner struct {
	stdout, stderr string
	err            error
	gotName        string
	gotArgs        []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.gotName, f.gotArgs = name, args
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func TestPdftotextExtractText(t *testing.T) {
	tests := []struct {
		name      string
		stdout    string
		wantPages int
	}{
		{"trailing form feed", "PAGINA UNO\fPAGINA DOS\f", 2},
		{"no trailing form feed", "PAGINA UNO\fPAGINA DOS", 2},
		{"single page", "SOLO UNA\f\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{stdout: tt.stdout}
			p := NewPdftotextProvider("", r)

			doc, err := p.ExtractText(context.Background(), "/tmp/escritura.pdf")
			if err != nil {
				t.Fatalf("ExtractText: %v", err)
			}
			if doc.Text != tt.stdout {
				t.Errorf("Text = %q", doc.Text)
			}
			if doc.Pages != tt.wantPages {
				t.Errorf("Pages = %d, want %d", doc.Pages, tt.wantPages)
			}
			if r.gotName != "pdftotext" {
				t.Errorf("ran %q, want pdftotext", r.gotName)
			}
			if got := strings.Join(r.gotArgs, " "); got != "-layout -enc UTF-8 -eol unix /tmp/escritura.pdf -" {
				t.Errorf("args = %q", got)
			}
		})
	}
}

func TestPdftotextErrors(t *testing.T) {
	broken := &fakeRunner{stderr: "Syntax Error: Couldn't find trailer dictionary", err: errors.New("exit status 1")}
	_, err := NewPdftotextProvider("/usr/bin/pdftotext", broken).ExtractText(context.Background(), "x.pdf")
	if !errors.Is(err, ErrInvalidPDF) {
		t.Errorf("expected ErrInvalidPDF, got %v", err)
	}
	var provErr *ProviderError
	if !errors.As(err, &provErr) || provErr.Provider != ProviderPdftotext {
		t.Errorf("expected ProviderError from pdftotext, got %#v", err)
	}

	missing := &fakeRunner{err: errors.New("executable file not found in $PATH")}
	_, err = NewPdftotextProvider("", missing).ExtractText(context.Background(), "x.pdf")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("expected ErrExtractionFailed, got %v", err)
	}
}

// buildPDF lays out numbered objects behind a classic xref table. Numbers
// without a body are listed as free, which is how objects packed into an
// object stream look to a classic reader.
func buildPDF(objects map[int]string, size int) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.5\n")
	offsets := make(map[int]int, len(objects))
	for num := 1; num < size; num++ {
		body, ok := objects[num]
		if !ok {
			continue
		}
		offsets[num] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", size)
	for num := 1; num < size; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&b, "%010d 00000 n \n", off)
		} else {
			b.WriteString("0000000000 00000 f \n")
		}
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, xref)
	return b.Bytes()
}

func stream(dict, data string) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

func deflate(t *testing.T, data string) string {
	t.Helper()
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write([]byte(data)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return b.String()
}

// plainPDF has one text line per page.
func plainPDF(lines ...string) []byte {
	objects := map[int]string{
		1: "<< /Type /Catalog /Pages 2 0 R >>",
		3: "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	kids := make([]string, len(lines))
	for i, line := range lines {
		page, content := 4+2*i, 5+2*i
		kids[i] = fmt.Sprintf("%d 0 R", page)
		objects[page] = fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", content)
		objects[content] = stream("", fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", line))
	}
	objects[2] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(lines))
	return buildPDF(objects, 4+2*len(lines))
}

// objectStreamPDF keeps the page tree and every page inside a compressed
// object stream; only the catalog is a top level object.
func objectStreamPDF(t *testing.T, pages int) []byte {
	t.Helper()
	bodies := []string{}
	kids := make([]string, pages)
	for i := 0; i < pages; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	bodies = append(bodies, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		bodies = append(bodies, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var header, body strings.Builder
	for i, obj := range bodies {
		fmt.Fprintf(&header, "%d %d ", 2+i, body.Len())
		body.WriteString(obj)
		body.WriteString("\n")
	}
	packed := header.String() + body.String()
	streamNum := 2 + len(bodies)
	objects := map[int]string{
		1: "<< /Type /Catalog /Pages 2 0 R >>",
		streamNum: stream(fmt.Sprintf("/Type /ObjStm /N %d /First %d /Filter /FlateDecode", len(bodies), header.Len()),
			deflate(t, packed)),
	}
	return buildPDF(objects, streamNum+1)
}

func TestCountPages(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, content []byte) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, content, 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name string
		pdf  []byte
		want int
	}{
		{"single page", plainPDF("EXTRACTO"), 1},
		{"four pages", plainPDF("uno", "dos", "tres", "cuatro"), 4},
		{"pages inside an object stream", objectStreamPDF(t, 5), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := CountPages(write(strings.ReplaceAll(tt.name, " ", "_")+".pdf", tt.pdf))
			if err != nil || n != tt.want {
				t.Errorf("CountPages = %d, %v; want %d", n, err, tt.want)
			}
		})
	}

	if _, err := CountPages(write("fake.pdf", []byte("hello"))); !errors.Is(err, ErrInvalidPDF) {
		t.Errorf("expected ErrInvalidPDF, got %v", err)
	}
	if _, err := CountPages(write("broken.pdf", []byte("%PDF-1.4\nno xref here"))); !errors.Is(err, ErrInvalidPDF) {
		t.Errorf("expected ErrInvalidPDF for a PDF without xref, got %v", err)
	}
	if _, err := CountPages(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestPdfkitExtractText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documento.pdf")
	if err := os.WriteFile(path, plainPDF("COMPRAVENTA", "CUANTIA 85000"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPdfkitProvider()
	doc, err := p.ExtractText(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if doc.Pages != 2 || doc.Provider != ProviderPdfkit {
		t.Errorf("pages = %d, provider = %q", doc.Pages, doc.Provider)
	}
	if !strings.Contains(doc.Text, "COMPRAVENTA") || !strings.Contains(doc.Text, "CUANTIA 85000") {
		t.Errorf("text = %q", doc.Text)
	}
	if strings.Count(doc.Text, "\f") != 1 {
		t.Errorf("expected pages separated by a form feed, got %q", doc.Text)
	}

	if _, err := p.ExtractText(context.Background(), filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected an error for a missing file")
	}
	var perr *ProviderError
	fake := filepath.Join(dir, "fake.pdf")
	_ = os.WriteFile(fake, []byte("hello"), 0o644)
	if _, err := p.ExtractText(context.Background(), fake); !errors.As(err, &perr) || !errors.Is(err, ErrInvalidPDF) {
		t.Errorf("expected a pdfkit ProviderError wrapping ErrInvalidPDF, got %v", err)
	}
}

func TestNewProviderSelection(t *testing.T) {
	p, err := New(context.Background(), Options{})
	if err != nil || p.Name() != ProviderPdfkit {
		t.Fatalf("New() = %v, %v; want the pdfkit provider", p, err)
	}

	p, err = New(context.Background(), Options{Backend: ProviderPdftotext})
	if err != nil || p.Name() != ProviderPdftotext {
		t.Fatalf("New(pdftotext) = %v, %v", p, err)
	}

	if _, err := New(context.Background(), Options{Backend: "tika"}); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}

	if _, err := New(context.Background(), Options{Backend: ProviderDocumentAI}); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("documentai without project should fail configuration, got %v", err)
	}
}

func TestDocumentAIErrorMapping(t *testing.T) {
	p := NewDocumentAIProviderWithClient(DocumentAIConfig{ProjectID: "p", Location: "us", ProcessorID: "abc"}, nil)

	tests := []struct {
		msg  string
		want error
	}{
		{"rpc error: code = PermissionDenied desc = PERMISSION_DENIED", ErrInvalidCredentials},
		{"rpc error: code = NotFound desc = processor", ErrProcessorNotFound},
		{"rpc error: code = InvalidArgument", ErrInvalidPDF},
		{"context deadline exceeded", context.DeadlineExceeded},
		{"boom", ErrExtractionFailed},
	}
	for _, tt := range tests {
		if err := p.handleProcessingError("ExtractText", errors.New(tt.msg)); !errors.Is(err, tt.want) {
			t.Errorf("handleProcessingError(%q) = %v, want %v", tt.msg, err, tt.want)
		}
	}

	if got := p.processorName(); got != "projects/p/locations/us/processors/abc" {
		t.Errorf("processorName = %q", got)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close with nil client: %v", err)
	}
}

package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) ProcessFile(ctx context.Context, path string) (string, error) {
	f.calls++
	return f.text, f.err
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractText_TXT(t *testing.T) {
	ocr := &fakeOCR{}
	s := NewFileExtractService(ocr)

	path := writeTempFile(t, "notes.txt", "line one\r\n\r\n\r\nline two\n")

	got, err := s.ExtractText(context.Background(), path, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "line one\n\nline two" {
		t.Errorf("unexpected normalized text: %q", got)
	}
	if ocr.calls != 0 {
		t.Error("OCR should not run for txt files")
	}
}

func TestExtractText_EmptyTXT(t *testing.T) {
	s := NewFileExtractService(&fakeOCR{})
	path := writeTempFile(t, "empty.txt", "   \n  \n")

	if _, err := s.ExtractText(context.Background(), path, false); err == nil {
		t.Fatal("expected error for empty text file")
	}
}

func TestExtractText_UnsupportedExtension(t *testing.T) {
	s := NewFileExtractService(&fakeOCR{})
	path := writeTempFile(t, "image.png", "not text")

	if _, err := s.ExtractText(context.Background(), path, false); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestExtractText_PDFForceOCR(t *testing.T) {
	ocr := &fakeOCR{text: "scanned content from OCR"}
	s := NewFileExtractService(ocr)

	// Content is irrelevant; forced OCR must not touch the direct parser.
	path := writeTempFile(t, "scan.pdf", "%PDF-1.4 garbage")

	got, err := s.ExtractText(context.Background(), path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "scanned content from OCR" {
		t.Errorf("expected OCR output, got %q", got)
	}
	if ocr.calls != 1 {
		t.Errorf("expected exactly one OCR call, got %d", ocr.calls)
	}
}

func TestExtractText_PDFDirectFailureFallsBackToOCR(t *testing.T) {
	ocr := &fakeOCR{text: "recovered by OCR"}
	s := NewFileExtractService(ocr)

	// Not a valid PDF: direct extraction errors, OCR takes over.
	path := writeTempFile(t, "broken.pdf", "this is not a pdf at all")

	got, err := s.ExtractText(context.Background(), path, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "recovered by OCR" {
		t.Errorf("expected OCR fallback output, got %q", got)
	}
	if ocr.calls != 1 {
		t.Errorf("expected OCR fallback call, got %d", ocr.calls)
	}
}

func TestExtractText_PDFBothPathsFail(t *testing.T) {
	ocr := &fakeOCR{err: fmt.Errorf("OCR quota exceeded")}
	s := NewFileExtractService(ocr)

	path := writeTempFile(t, "broken.pdf", "still not a pdf")

	_, err := s.ExtractText(context.Background(), path, false)
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "direct extraction failed") || !strings.Contains(msg, "OCR failed") {
		t.Errorf("expected both failures in message, got %q", msg)
	}
}

func TestStripDOCXML(t *testing.T) {
	xml := `<w:document><w:body><w:p><w:r><w:t>First paragraph</w:t></w:r></w:p><w:p><w:r><w:t>Second &amp; third</w:t></w:r></w:p></w:body></w:document>`

	got := normalizeExtractedText(stripDOCXML([]byte(xml)))
	if got != "First paragraph\nSecond & third" {
		t.Errorf("unexpected docx text: %q", got)
	}
}

func TestNormalizeExtractedText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"windows newlines", "a\r\nb", "a\nb"},
		{"collapse blank runs", "a\n\n\n\nb", "a\n\nb"},
		{"trim line whitespace", "  a  \n\tb\t", "a\nb"},
		{"empty", "  \n \n", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeExtractedText(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

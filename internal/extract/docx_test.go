package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Patient admitted with chest pain.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Initial assessment complete.</w:t><w:br w:type="page"/></w:r></w:p>
    <w:p><w:r><w:t>Discharge summary follows.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestDOCXReaderPages(t *testing.T) {
	r := NewDOCXReader(500)
	pages, err := r.ExtractPages(buildDOCX(t, sampleDocumentXML))
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d: %#v", len(pages), pages)
	}
	if !strings.Contains(pages[0], "chest pain") {
		t.Errorf("page 1 missing text: %q", pages[0])
	}
	if !strings.Contains(pages[1], "Discharge summary") {
		t.Errorf("page 2 missing text: %q", pages[1])
	}
}

func TestDOCXReaderNotAZip(t *testing.T) {
	r := NewDOCXReader(500)
	_, err := r.ExtractPages([]byte("plain text, not a docx"))
	if !errors.Is(err, ErrCorruptContent) {
		t.Fatalf("expected ErrCorruptContent, got %v", err)
	}
}

func TestDOCXReaderMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/other.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte("<x/>")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	r := NewDOCXReader(500)
	_, err = r.ExtractPages(buf.Bytes())
	if !errors.Is(err, ErrCorruptContent) {
		t.Fatalf("expected ErrCorruptContent, got %v", err)
	}
}

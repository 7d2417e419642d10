// Package extract turns raw file bytes into ordered per-page plain text.
// One Reader per file format, selected by extension through the Registry.
package extract

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrCorruptContent    = errors.New("corrupt file content")
)

// Reader extracts the ordered sequence of per-page text from one format.
// A page with no extractable text is returned as an empty string, not an
// error, so page numbering stays aligned with the source document.
type Reader interface {
	ExtractPages(data []byte) ([]string, error)
}

type Registry struct {
	readers map[string]Reader
}

// NewRegistry wires the default format readers. wordsPerPage bounds the
// synthetic pagination used by formats without native page structure.
func NewRegistry(wordsPerPage int) *Registry {
	return &Registry{
		readers: map[string]Reader{
			".pdf":  NewPDFReader(),
			".docx": NewDOCXReader(wordsPerPage),
			".txt":  NewTextReader(wordsPerPage),
		},
	}
}

// ForFile returns the reader for the file's extension.
func (r *Registry) ForFile(name string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(name))
	reader, ok := r.readers[ext]
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	return reader, nil
}

// Supported reports whether the file's extension has a registered reader.
func (r *Registry) Supported(name string) bool {
	_, ok := r.readers[strings.ToLower(filepath.Ext(name))]
	return ok
}

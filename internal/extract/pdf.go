package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

type PDFReader struct{}

func NewPDFReader() *PDFReader {
	return &PDFReader{}
}

// ExtractPages returns the plain text of each PDF page in order. Pages whose
// text cannot be decoded yield an empty string so numbering stays intact.
func (p *PDFReader) ExtractPages(data []byte) (pages []string, err error) {
	// The pdf library panics on some malformed files; treat that as corrupt
	// content so the caller can skip the file.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrCorruptContent, r)
		}
	}()

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrCorruptContent)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptContent, err)
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

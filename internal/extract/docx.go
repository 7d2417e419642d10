package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type DOCXReader struct {
	wordsPerPage int
}

func NewDOCXReader(wordsPerPage int) *DOCXReader {
	return &DOCXReader{wordsPerPage: wordsPerPage}
}

// ExtractPages pulls paragraph text out of word/document.xml. Explicit page
// breaks become form feeds; documents without any break fall back to
// synthetic words-per-page pagination.
func (d *DOCXReader) ExtractPages(data []byte) ([]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptContent, err)
	}

	var content []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptContent, err)
		}
		content, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptContent, err)
		}
		break
	}
	if content == nil {
		return nil, fmt.Errorf("%w: missing word/document.xml", ErrCorruptContent)
	}

	text, err := parseDocumentXML(content)
	if err != nil {
		return nil, err
	}
	return paginate(text, d.wordsPerPage), nil
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Breaks []breakElement `xml:"br"`
	Text   []textElement  `xml:"t"`
}

type breakElement struct {
	Type string `xml:"type,attr"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptContent, err)
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, r := range para.Runs {
			for _, t := range r.Text {
				result.WriteString(t.Content)
			}
			for _, br := range r.Breaks {
				if br.Type == "page" {
					result.WriteString("\f")
				}
			}
		}
	}
	return result.String(), nil
}

// Package pdfutil validates uploaded documents and reads their page count.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	pdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNotPDF is returned for uploads that are not a readable PDF.
var ErrNotPDF = errors.New("file is not a PDF")

// ContentType is the media type of accepted uploads.
const ContentType = "application/pdf"

// Info describes an accepted document.
type Info struct {
	Pages       int
	ContentType string
}

// Inspect sniffs data, validates its structure and counts its pages.
func Inspect(data []byte) (*Info, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty upload: %w", ErrNotPDF)
	}
	// DetectContentType only looks at the first 512 bytes.
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if ct := http.DetectContentType(head); ct != ContentType {
		return nil, fmt.Errorf("detected %s: %w", ct, ErrNotPDF)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return nil, fmt.Errorf("validate pdf: %v: %w", err, ErrNotPDF)
	}

	pages, err := countPages(data)
	if err != nil {
		return nil, err
	}
	return &Info{Pages: pages, ContentType: ContentType}, nil
}

func countPages(data []byte) (pages int, err error) {
	// ledongthuc/pdf panics on some malformed trailers.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v: %w", r, ErrNotPDF)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("new pdf reader: %v: %w", err, ErrNotPDF)
	}
	pages = doc.NumPage()
	if pages < 1 {
		pages = 1
	}
	return pages, nil
}

package pdfutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInspectRejectsNonPDF(t *testing.T) {
	cases := map[string][]byte{
		"empty": nil,
		"png":   {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0},
		"text":  []byte("Invoice #42\nTotal: 93.50"),
		"html":  []byte("<html><body>invoice</body></html>"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			info, err := Inspect(data)
			assert.Nil(t, info)
			assert.ErrorIs(t, err, ErrNotPDF)
		})
	}
}

func TestInspectRejectsTruncatedPDF(t *testing.T) {
	_, err := Inspect([]byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog"))
	assert.ErrorIs(t, err, ErrNotPDF)
}

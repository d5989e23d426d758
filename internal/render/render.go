// Package render rasterizes PDF pages for preview and overlay placement.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// ErrPageOutOfRange is returned for page numbers the document does not have.
var ErrPageOutOfRange = errors.New("page out of range")

// Page is one rasterized page. Width and Height are the intrinsic pixel size
// the bounding-box geometry is placed against.
type Page struct {
	Image  image.Image
	Width  int
	Height int
}

// Renderer turns PDF bytes and a 1-based page number into a bitmap.
type Renderer interface {
	Render(ctx context.Context, pdf []byte, page int) (*Page, error)
}

// Fitz renders with MuPDF.
type Fitz struct {
	DPI float64
}

// NewFitz builds a Fitz renderer. A non-positive dpi uses 96.
func NewFitz(dpi float64) *Fitz {
	if dpi <= 0 {
		dpi = 96
	}
	return &Fitz{DPI: dpi}
}

// Render implements Renderer.
func (f *Fitz) Render(ctx context.Context, pdf []byte, page int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return nil, fmt.Errorf("render page %d of %d: %w", page, doc.NumPage(), ErrPageOutOfRange)
	}
	img, err := doc.ImageDPI(page-1, f.DPI)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	b := img.Bounds()
	return &Page{Image: img, Width: b.Dx(), Height: b.Dy()}, nil
}

// Thumbnail shrinks img to at most maxWidth pixels wide, keeping the aspect
// ratio. Images already narrow enough are returned unchanged.
func Thumbnail(img image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return img
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG)
}

// Placeholder is the blank page shown when rendering fails.
func Placeholder(width, height int) image.Image {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	return imaging.New(width, height, image.White)
}

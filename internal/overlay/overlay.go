// Package overlay maps extraction bounding boxes onto a rendered page.
//
// Boxes are placed in the page's intrinsic pixel space (the size the page was
// rasterized at). The display applies one uniform scale, anchored top-left,
// to reconcile that space with the width the page is actually shown at.
package overlay

import (
	"math"

	"github.com/dharsanguruparan/InvoiceDesk/internal/model"
)

// Page is the intrinsic pixel size of a rendered page.
type Page struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is a rectangle in pixels, origin top-left.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scaled applies the display transform.
func (r Rect) Scaled(scale float64) Rect {
	return Rect{
		Left:   r.Left * scale,
		Top:    r.Top * scale,
		Width:  r.Width * scale,
		Height: r.Height * scale,
	}
}

// Placement is one box ready to draw.
type Placement struct {
	Field string `json:"field,omitempty"`
	Page  int    `json:"page"`
	// Rect is in intrinsic page pixels.
	Rect Rect `json:"rect"`
	// Display is Rect after the display scale.
	Display Rect `json:"display"`
}

// Place converts box into intrinsic page pixels. Normalized boxes are
// fractions of the page size; the rest are taken as pixels already. The
// result is not clipped to the page. ok is false when the box geometry is not
// a finite number.
func Place(box model.BoundingBox, page Page) (Rect, bool) {
	for _, v := range []float64{box.X, box.Y, box.Width, box.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Rect{}, false
		}
	}
	if !box.Normalized {
		return Rect{Left: box.X, Top: box.Y, Width: box.Width, Height: box.Height}, true
	}
	return Rect{
		Left:   box.X * page.Width,
		Top:    box.Y * page.Height,
		Width:  box.Width * page.Width,
		Height: box.Height * page.Height,
	}, true
}

// Scale is the ratio of displayed to intrinsic width. A zero or unknown
// intrinsic width yields 1.
func Scale(displayedWidth, intrinsicWidth float64) float64 {
	if intrinsicWidth <= 0 || displayedWidth <= 0 ||
		math.IsNaN(displayedWidth) || math.IsInf(displayedWidth, 0) {
		return 1
	}
	return displayedWidth / intrinsicWidth
}

// Layout places every box on pageNumber and skips the rest.
func Layout(boxes []model.BoundingBox, page Page, pageNumber int, scale float64) []Placement {
	out := make([]Placement, 0, len(boxes))
	for _, b := range boxes {
		p := b.Page
		if p <= 0 {
			p = 1
		}
		if p != pageNumber {
			continue
		}
		r, ok := Place(b, page)
		if !ok {
			continue
		}
		out = append(out, Placement{Field: b.Field, Page: p, Rect: r, Display: r.Scaled(scale)})
	}
	return out
}

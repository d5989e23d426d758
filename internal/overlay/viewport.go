package overlay

import "github.com/dharsanguruparan/InvoiceDesk/internal/model"

// Viewport tracks a page shown at some display width. The scale must follow
// the displayed width, so callers report every resize.
type Viewport struct {
	page      Page
	displayed float64
	scale     float64
}

// NewViewport starts a viewport for page shown at displayedWidth. A zero
// displayed width means the page is shown at its intrinsic size.
func NewViewport(page Page, displayedWidth float64) *Viewport {
	v := &Viewport{page: page}
	v.Resize(displayedWidth)
	return v
}

// Page returns the intrinsic page size.
func (v *Viewport) Page() Page { return v.page }

// DisplayedWidth returns the last width passed to Resize.
func (v *Viewport) DisplayedWidth() float64 { return v.displayed }

// Scale returns the current display scale.
func (v *Viewport) Scale() float64 { return v.scale }

// Resize records a new displayed width and reports whether the scale changed.
func (v *Viewport) Resize(displayedWidth float64) bool {
	if displayedWidth <= 0 {
		displayedWidth = v.page.Width
	}
	v.displayed = displayedWidth
	next := Scale(displayedWidth, v.page.Width)
	if next == v.scale {
		return false
	}
	v.scale = next
	return true
}

// Place lays out boxes on pageNumber at the current scale.
func (v *Viewport) Place(boxes []model.BoundingBox, pageNumber int) []Placement {
	return Layout(boxes, v.page, pageNumber, v.scale)
}

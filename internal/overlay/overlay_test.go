package overlay

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dharsanguruparan/InvoiceDesk/internal/model"
)

var letter = Page{Width: 1000, Height: 1400}

func TestPlaceNormalized(t *testing.T) {
	box := model.BoundingBox{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.05, Normalized: true, Page: 1}
	r, ok := Place(box, letter)
	assert.True(t, ok)
	assert.InDelta(t, 100, r.Left, 1e-9)
	assert.InDelta(t, 280, r.Top, 1e-9)
	assert.InDelta(t, 300, r.Width, 1e-9)
	assert.InDelta(t, 70, r.Height, 1e-9)
}

func TestScaleDoesNotChangeIntrinsicRect(t *testing.T) {
	box := model.BoundingBox{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.05, Normalized: true, Page: 1}
	placed := Layout([]model.BoundingBox{box}, letter, 1, 0.5)
	assert.Len(t, placed, 1)
	p := placed[0]
	assert.InDelta(t, 100, p.Rect.Left, 1e-9)
	assert.InDelta(t, 280, p.Rect.Top, 1e-9)
	assert.InDelta(t, 300, p.Rect.Width, 1e-9)
	assert.InDelta(t, 70, p.Rect.Height, 1e-9)

	assert.InDelta(t, 50, p.Display.Left, 1e-9)
	assert.InDelta(t, 140, p.Display.Top, 1e-9)
	assert.InDelta(t, 150, p.Display.Width, 1e-9)
	assert.InDelta(t, 35, p.Display.Height, 1e-9)
}

func TestPlaceAbsolute(t *testing.T) {
	r, ok := Place(model.BoundingBox{X: 12, Y: 34, Width: 56, Height: 78}, letter)
	assert.True(t, ok)
	assert.Equal(t, Rect{Left: 12, Top: 34, Width: 56, Height: 78}, r)
}

func TestPlaceDoesNotClip(t *testing.T) {
	r, ok := Place(model.BoundingBox{X: 1.2, Y: -0.1, Width: 0.5, Height: 0.5, Normalized: true}, letter)
	assert.True(t, ok)
	assert.InDelta(t, 1200, r.Left, 1e-9)
	assert.InDelta(t, -140, r.Top, 1e-9)
}

func TestLayoutSkipsOtherPagesAndBadGeometry(t *testing.T) {
	boxes := []model.BoundingBox{
		{Field: "vendor", X: 0.1, Y: 0.1, Width: 0.1, Height: 0.1, Normalized: true, Page: 1},
		{Field: "total", X: 0.1, Y: 0.1, Width: 0.1, Height: 0.1, Normalized: true, Page: 2},
		{Field: "dueDate", X: math.NaN(), Y: 0.1, Width: 0.1, Height: 0.1, Normalized: true, Page: 1},
		{Field: "currency", X: 0.5, Y: math.Inf(1), Width: 0.1, Height: 0.1, Normalized: true, Page: 1},
		{Field: "legacy", X: 5, Y: 5, Width: 5, Height: 5},
	}
	got := Layout(boxes, letter, 1, 1)
	assert.Len(t, got, 2)
	assert.Equal(t, "vendor", got[0].Field)
	assert.Equal(t, "legacy", got[1].Field)
	assert.Equal(t, 1, got[1].Page)
}

func TestScale(t *testing.T) {
	assert.InDelta(t, 0.5, Scale(500, 1000), 1e-9)
	assert.InDelta(t, 1.2, Scale(1200, 1000), 1e-9)
	assert.Equal(t, 1.0, Scale(500, 0))
	assert.Equal(t, 1.0, Scale(0, 1000))
}

func TestViewportResize(t *testing.T) {
	v := NewViewport(letter, 0)
	assert.Equal(t, 1.0, v.Scale())

	assert.True(t, v.Resize(500))
	assert.InDelta(t, 0.5, v.Scale(), 1e-9)
	assert.False(t, v.Resize(500))
	assert.Equal(t, 500.0, v.DisplayedWidth())

	box := model.BoundingBox{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.05, Normalized: true, Page: 1}
	got := v.Place([]model.BoundingBox{box}, 1)
	assert.InDelta(t, 150, got[0].Display.Width, 1e-9)

	assert.True(t, v.Resize(2000))
	got = v.Place([]model.BoundingBox{box}, 1)
	assert.InDelta(t, 600, got[0].Display.Width, 1e-9)
	assert.InDelta(t, 300, got[0].Rect.Width, 1e-9)
}

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxDefaults(t *testing.T) {
	var boxes []BoundingBox
	require.NoError(t, json.Unmarshal([]byte(`[
		{"field":"total","x":0.1,"y":0.2,"width":0.3,"height":0.05},
		{"x":10,"y":20,"width":30,"height":40,"normalized":false,"page":2}
	]`), &boxes))

	require.Len(t, boxes, 2)
	assert.True(t, boxes[0].Normalized)
	assert.Equal(t, 1, boxes[0].Page)
	assert.Equal(t, "total", boxes[0].Field)
	assert.False(t, boxes[1].Normalized)
	assert.Equal(t, 2, boxes[1].Page)
}

func TestBoundingBoxWritesFlagExplicitly(t *testing.T) {
	out, err := json.Marshal(BoundingBox{X: 1, Y: 2, Width: 3, Height: 4, Page: 1})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"normalized":false`)
}

func TestStatusValid(t *testing.T) {
	for _, s := range Statuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, StatusException.Valid())
	assert.False(t, Status("done").Valid())
	assert.False(t, Status("").Valid())
}

func TestTimestampUsesUTCMinutes(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2025, 9, 10, 10, 45, 59, 0, loc)
	assert.Equal(t, "2025-09-10 08:45", Timestamp(ts))
}

func TestCloneIsDeep(t *testing.T) {
	inv := Invoice{ID: 1, Data: map[string]string{"total": "1"}, Boxes: []BoundingBox{{Field: "total"}}}
	c := inv.Clone()
	c.Data["total"] = "2"
	c.Boxes[0].Field = "vendor"
	assert.Equal(t, "1", inv.Data["total"])
	assert.Equal(t, "total", inv.Boxes[0].Field)
	assert.NotNil(t, Invoice{}.Clone().Boxes)
}

func TestNormalizeForm(t *testing.T) {
	got := NormalizeForm(map[string]string{"vendor": "ACME", "extra": "x"})
	assert.Len(t, got, len(FormFields))
	assert.Equal(t, "ACME", got["vendor"])
	assert.Equal(t, "", got["total"])
	assert.NotContains(t, got, "extra")
}

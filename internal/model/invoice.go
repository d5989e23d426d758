// Package model contains the invoice types shared across packages.
package model

import (
	"encoding/json"
	"time"
)

// Status is the review state shown on the dashboard.
type Status string

const (
	StatusPending Status = "Pending"
	StatusDone    Status = "Done"
	StatusError   Status = "Error"
	// StatusException comes from the older review flow. Stored records may
	// still carry it, but new writes are limited to Statuses.
	StatusException Status = "Exception"
)

// Statuses lists the values a reviewer can assign.
var Statuses = []Status{StatusPending, StatusDone, StatusError}

// Valid reports whether s can be written by a reviewer.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// TimestampLayout formats uploadedAt/modifiedAt with minute resolution. The
// layout sorts lexically in time order.
const TimestampLayout = "2006-01-02 15:04"

// Timestamp renders t in TimestampLayout using UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Invoice is the metadata record for one uploaded document under review.
type Invoice struct {
	ID         int    `json:"id"`
	CaseName   string `json:"caseName"`
	Pages      int    `json:"pages"`
	UploadedAt string `json:"uploadedAt"`
	ModifiedAt string `json:"modifiedAt"`
	Status     Status `json:"status"`
	File       string `json:"file"`
	// FileURL is an ephemeral reference minted by the attachment registry.
	// It is only meaningful inside the process that created it and is never
	// written to durable storage.
	FileURL string            `json:"fileUrl,omitempty"`
	Data    map[string]string `json:"data"`
	Boxes   []BoundingBox     `json:"boxes"`
}

// Clone returns a deep copy so callers cannot mutate store state.
func (inv Invoice) Clone() Invoice {
	out := inv
	out.Data = make(map[string]string, len(inv.Data))
	for k, v := range inv.Data {
		out.Data[k] = v
	}
	out.Boxes = append([]BoundingBox(nil), inv.Boxes...)
	if out.Boxes == nil {
		out.Boxes = []BoundingBox{}
	}
	return out
}

// BoundingBox marks where on a rendered page a field value was found.
type BoundingBox struct {
	Field  string  `json:"field,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	// Normalized means X/Y/Width/Height are fractions of the page size.
	// When false they are already page pixels.
	Normalized bool `json:"normalized"`
	Page       int  `json:"page"`
}

// UnmarshalJSON defaults Normalized to true and Page to 1 when the source
// omits them.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	type plain BoundingBox
	aux := struct {
		*plain
		Normalized *bool `json:"normalized"`
	}{plain: (*plain)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.Normalized = aux.Normalized == nil || *aux.Normalized
	if b.Page <= 0 {
		b.Page = 1
	}
	return nil
}

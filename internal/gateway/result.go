package gateway

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dharsanguruparan/InvoiceDesk/internal/model"
)

// Result is a decoded extraction response.
type Result struct {
	// Fields is keyed by form field name and always holds every form field.
	Fields map[string]string
	Boxes  []model.BoundingBox
	// ExecutionTime is the service's own timing, in seconds.
	ExecutionTime float64
}

// FilledFields counts fields with a non-empty value.
func (r *Result) FilledFields() int {
	n := 0
	for _, v := range r.Fields {
		if v != "" {
			n++
		}
	}
	return n
}

var boxKeys = []string{"boxes", "bounding_boxes", "regions"}

func decodeResult(raw []byte) (*Result, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &Error{Message: "extraction service returned invalid JSON"}
	}
	if perr := text(body["parse_error"]); perr != "" {
		return nil, &Error{Message: "extraction service could not parse the model output: " + perr}
	}

	byAPIKey := make(map[string]string, len(model.FormFields))
	for _, f := range model.FormFields {
		byAPIKey[f.APIKey] = f.Name
	}
	res := &Result{Fields: model.EmptyForm(), Boxes: []model.BoundingBox{}}
	for key, v := range body {
		if name, ok := byAPIKey[key]; ok {
			if name == "lineItems" {
				res.Fields[name] = lineItems(v)
			} else {
				res.Fields[name] = text(v)
			}
		}
	}
	if t, ok := number(body["execution_time_seconds"]); ok {
		res.ExecutionTime = t
	}
	for _, key := range boxKeys {
		list, ok := body[key].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			if b, ok := box(item); ok {
				res.Boxes = append(res.Boxes, b)
			}
		}
		break
	}
	return res, nil
}

// box decodes one region. Regions without all four geometry fields are
// dropped.
func box(v any) (model.BoundingBox, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return model.BoundingBox{}, false
	}
	var geom [4]float64
	for i, k := range []string{"x", "y", "width", "height"} {
		f, ok := number(m[k])
		if !ok {
			return model.BoundingBox{}, false
		}
		geom[i] = f
	}
	b := model.BoundingBox{
		Field:      fieldName(text(m["field"])),
		X:          geom[0],
		Y:          geom[1],
		Width:      geom[2],
		Height:     geom[3],
		Normalized: true,
		Page:       1,
	}
	if n, ok := m["normalized"].(bool); ok {
		b.Normalized = n
	}
	if p, ok := number(m["page"]); ok && p >= 1 {
		b.Page = int(p)
	}
	return b, true
}

// fieldName maps API keys onto form field names and leaves anything else
// as sent.
func fieldName(s string) string {
	for _, f := range model.FormFields {
		if f.APIKey == s {
			return f.Name
		}
	}
	return s
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// text flattens a JSON scalar. Null becomes "".
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := text(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return object(t, ", ")
	}
	return fmt.Sprint(v)
}

// lineItems renders one line per item.
func lineItems(v any) string {
	list, ok := v.([]any)
	if !ok {
		return text(v)
	}
	lines := make([]string, 0, len(list))
	for _, item := range list {
		var s string
		if m, ok := item.(map[string]any); ok {
			s = object(m, " | ")
		} else {
			s = text(item)
		}
		if s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

// object renders key: value pairs in a stable order, description first.
func object(m map[string]any, sep string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := keyRank(keys[i]), keyRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if s := text(m[k]); s != "" {
			parts = append(parts, k+": "+s)
		}
	}
	return strings.Join(parts, sep)
}

func keyRank(k string) int {
	switch k {
	case "description":
		return 0
	case "quantity":
		return 1
	case "unit_price":
		return 2
	case "amount", "total":
		return 3
	}
	return 4
}

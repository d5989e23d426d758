package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/InvoiceDesk/internal/attachment"
)

func invoiceFile() *attachment.File {
	return &attachment.File{Name: "acme.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7 body")}
}

func newClient(url string) *Client {
	return New(url, 5*time.Second, zerolog.Nop())
}

func TestExtractSendsMultipartAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ExtractPath, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "only totals", r.FormValue("custom_prompt"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "acme.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.7 body", string(data))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"invoice_number": "INV-42",
			"invoice_date":   "2025-09-01",
			"vendor_name":    "ACME Corp",
			"total_amount":   93.5,
			"currency":       nil,
			"line_items": []any{
				map[string]any{"description": "Widget", "quantity": 2, "amount": 40},
				map[string]any{"description": "Gadget", "amount": 53.5},
			},
			"unexpected":             "ignored",
			"execution_time_seconds": 3.21,
			"boxes": []any{
				map[string]any{"field": "total", "x": 0.7, "y": 0.9, "width": 0.1, "height": 0.02, "page": 1},
				map[string]any{"field": "vendor_name", "x": 10, "y": 20, "width": 30, "height": 5, "normalized": false},
				map[string]any{"field": "dueDate", "x": 0.1},
			},
			"boxes_count":    3,
			"words_per_page": []any{120},
		})
	}))
	defer srv.Close()

	res, err := newClient(srv.URL).Extract(context.Background(), invoiceFile(), "only totals")
	require.NoError(t, err)

	assert.Len(t, res.Fields, 10)
	assert.Equal(t, "INV-42", res.Fields["invoiceNumber"])
	assert.Equal(t, "2025-09-01", res.Fields["invoiceDate"])
	assert.Equal(t, "ACME Corp", res.Fields["vendor"])
	assert.Equal(t, "93.5", res.Fields["total"])
	assert.Equal(t, "", res.Fields["currency"])
	assert.Equal(t, "description: Widget | quantity: 2 | amount: 40\ndescription: Gadget | amount: 53.5", res.Fields["lineItems"])
	assert.NotContains(t, res.Fields, "unexpected")
	assert.InDelta(t, 3.21, res.ExecutionTime, 1e-9)
	assert.Equal(t, 5, res.FilledFields())

	require.Len(t, res.Boxes, 2)
	assert.Equal(t, "total", res.Boxes[0].Field)
	assert.True(t, res.Boxes[0].Normalized)
	assert.Equal(t, 1, res.Boxes[0].Page)
	assert.Equal(t, "vendor", res.Boxes[1].Field)
	assert.False(t, res.Boxes[1].Normalized)
}

func TestExtractDefaultPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultPrompt, r.FormValue("custom_prompt"))
		_, _ = io.WriteString(w, `{"regions":[{"x":"0.1","y":"0.2","width":"0.3","height":"0.05"}]}`)
	}))
	defer srv.Close()

	res, err := newClient(srv.URL+"/").Extract(context.Background(), invoiceFile(), "  ")
	require.NoError(t, err)
	require.Len(t, res.Boxes, 1)
	assert.InDelta(t, 0.3, res.Boxes[0].Width, 1e-9)
	assert.Equal(t, 0, res.FilledFields())
}

func TestExtractServiceError(t *testing.T) {
	cases := []struct {
		name, body string
		status     int
		want       string
	}{
		{"error field", `{"error":"ollama timed out"}`, 500, "ollama timed out"},
		{"detail field", `{"detail":"file missing"}`, 422, "file missing"},
		{"no body", ``, 502, "extraction failed: HTTP 502"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).Extract(context.Background(), invoiceFile(), "")
			var gwErr *Error
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tc.status, gwErr.Status)
			assert.Equal(t, tc.want, gwErr.Message)
			assert.Equal(t, tc.want, UserMessage(err))
		})
	}
}

func TestExtractParseErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"raw_output":"sorry","parse_error":"Expecting value","boxes":[]}`)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Extract(context.Background(), invoiceFile(), "")
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, gwErr.Message, "Expecting value")
}

func TestExtractInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>proxy</html>`)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Extract(context.Background(), invoiceFile(), "")
	var gwErr *Error
	assert.ErrorAs(t, err, &gwErr)
}

func TestExtractUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(url).Extract(context.Background(), invoiceFile(), "")
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, UserMessage(err), "Could not reach")
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		_, _ = io.WriteString(w, `{"message":"Invoice Extractor API is running","version":"1.0.0"}`)
	}))
	assert.True(t, newClient(srv.URL).Health(context.Background()))
	srv.Close()
	assert.False(t, newClient(srv.URL).Health(context.Background()))
}

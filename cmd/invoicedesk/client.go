package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dharsanguruparan/InvoiceDesk/internal/api"
	"github.com/dharsanguruparan/InvoiceDesk/internal/processing"
	"github.com/dharsanguruparan/InvoiceDesk/internal/store"
)

// apiClient talks to a running review server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: timeout}}
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact server at %s: %w", c.base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return &apiError{Status: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

func (c *apiClient) List(ctx context.Context, query string) ([]store.Invoice, error) {
	var out []store.Invoice
	path := "/invoices"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	return out, c.do(ctx, http.MethodGet, path, nil, "", &out)
}

func (c *apiClient) Get(ctx context.Context, id int) (store.Invoice, error) {
	var out store.Invoice
	return out, c.do(ctx, http.MethodGet, "/invoices/"+strconv.Itoa(id), nil, "", &out)
}

func (c *apiClient) Stats(ctx context.Context) (api.StatsResponse, error) {
	var out api.StatsResponse
	return out, c.do(ctx, http.MethodGet, "/invoices/stats", nil, "", &out)
}

// Upload posts path as a new invoice, or replaces the file of id when id > 0.
func (c *apiClient) Upload(ctx context.Context, path, caseName string, id int) (store.Invoice, error) {
	var out store.Invoice
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if caseName != "" {
		if err := w.WriteField("caseName", caseName); err != nil {
			return out, err
		}
	}
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return out, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return out, err
	}
	if err := w.Close(); err != nil {
		return out, err
	}
	method, target := http.MethodPost, "/invoices"
	if id > 0 {
		method, target = http.MethodPut, "/invoices/"+strconv.Itoa(id)+"/file"
	}
	return out, c.do(ctx, method, target, &buf, w.FormDataContentType(), &out)
}

func (c *apiClient) SetStatus(ctx context.Context, id int, status string) (store.Invoice, error) {
	var out store.Invoice
	return out, c.sendJSON(ctx, http.MethodPut, "/invoices/"+strconv.Itoa(id)+"/status", map[string]string{"status": status}, &out)
}

func (c *apiClient) Extract(ctx context.Context, id int, prompt string) (api.ExtractResponse, error) {
	var out api.ExtractResponse
	return out, c.sendJSON(ctx, http.MethodPost, "/invoices/"+strconv.Itoa(id)+"/extract", api.ExtractRequest{Prompt: prompt}, &out)
}

func (c *apiClient) ExtractAsync(ctx context.Context, id int, prompt string) (processing.Job, error) {
	var out processing.Job
	return out, c.sendJSON(ctx, http.MethodPost, "/invoices/"+strconv.Itoa(id)+"/extract?async=true", api.ExtractRequest{Prompt: prompt}, &out)
}

func (c *apiClient) Job(ctx context.Context, id string) (processing.Job, error) {
	var out processing.Job
	return out, c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, "", &out)
}

func (c *apiClient) Delete(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/invoices/"+strconv.Itoa(id), nil, "", nil)
}

func (c *apiClient) GatewayHealth(ctx context.Context) (bool, error) {
	var out struct {
		Reachable bool `json:"reachable"`
	}
	return out.Reachable, c.do(ctx, http.MethodGet, "/gateway/health", nil, "", &out)
}

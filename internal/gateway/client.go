// Package gateway is the client for the remote invoice extraction service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/InvoiceDesk/internal/attachment"
)

// DefaultPrompt is sent when the caller does not supply one.
const DefaultPrompt = "Extract all invoice fields including invoice number, date, due date, vendor name and address, purchase order, account number, line items, total amount, and currency."

// ExtractPath is the extraction endpoint on the service.
const ExtractPath = "/extract-invoice"

// ErrUnreachable is returned when the service cannot be contacted at all.
var ErrUnreachable = errors.New("extraction service unreachable")

// Error is a failure reported by the service.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return "extraction failed: " + e.Message
	}
	return fmt.Sprintf("extraction failed (%d): %s", e.Status, e.Message)
}

// UserMessage renders err for a reviewer. Connectivity problems get a
// distinct message so they are not mistaken for a bad document.
func UserMessage(err error) string {
	var gwErr *Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnreachable):
		return "Could not reach the extraction service. Check that it is running and try again."
	case errors.As(err, &gwErr):
		return gwErr.Message
	default:
		return err.Error()
	}
}

// Client posts documents to the extraction service.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New returns a Client for baseURL.
func New(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string { return c.baseURL }

// Extract uploads file with prompt and decodes the extracted fields.
func (c *Client) Extract(ctx context.Context, file *attachment.File, prompt string) (*Result, error) {
	if file == nil {
		return nil, errors.New("extract: no file")
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}
	body, contentType, err := multipartBody(file, prompt)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ExtractPath, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}
	result, err := decodeResult(raw)
	if err != nil {
		return nil, err
	}
	c.log.Info().
		Str("file", file.Name).
		Int("fields", result.FilledFields()).
		Int("boxes", len(result.Boxes)).
		Dur("elapsed", time.Since(start)).
		Float64("service_seconds", result.ExecutionTime).
		Msg("extraction complete")
	return result, nil
}

// Health reports whether the service root answers with a 2xx.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Msg("extraction service health check failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func multipartBody(file *attachment.File, prompt string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.WriteField("custom_prompt", prompt); err != nil {
		return nil, "", fmt.Errorf("write prompt: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// errorMessage pulls a human message out of an error body.
func errorMessage(raw []byte, status int) string {
	var body map[string]any
	if json.Unmarshal(raw, &body) == nil {
		for _, key := range []string{"error", "message", "detail"} {
			if s := text(body[key]); s != "" {
				return s
			}
		}
	}
	if status != 0 {
		return fmt.Sprintf("extraction failed: HTTP %d", status)
	}
	return "extraction failed"
}

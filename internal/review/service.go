// Package review implements the reviewer workflow on top of the invoice
// store: upload, form edits, status changes, extraction and the page views
// used to draw bounding boxes.
package review

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/InvoiceDesk/internal/attachment"
	"github.com/dharsanguruparan/InvoiceDesk/internal/gateway"
	"github.com/dharsanguruparan/InvoiceDesk/internal/model"
	"github.com/dharsanguruparan/InvoiceDesk/internal/overlay"
	pdfutil "github.com/dharsanguruparan/InvoiceDesk/internal/pdf"
	"github.com/dharsanguruparan/InvoiceDesk/internal/render"
	"github.com/dharsanguruparan/InvoiceDesk/internal/store"
)

var (
	// ErrAttachmentMissing means the record has no file in this process.
	ErrAttachmentMissing = errors.New("no PDF attached to this invoice; select the file again")
	// ErrExtractionInProgress rejects a second extraction for the same record.
	ErrExtractionInProgress = errors.New("extraction already in progress for this invoice")
	// ErrInvalidStatus rejects statuses a reviewer cannot assign.
	ErrInvalidStatus = errors.New("invalid status")
)

// Extractor is the subset of the gateway client the workflow needs.
type Extractor interface {
	Extract(ctx context.Context, file *attachment.File, prompt string) (*gateway.Result, error)
}

// InspectFunc validates an upload and reports its page count.
type InspectFunc func(data []byte) (*pdfutil.Info, error)

// Placeholder size used when a page cannot be rendered: US Letter at 96 DPI.
const (
	placeholderWidth  = 816
	placeholderHeight = 1056
)

// Service coordinates the store, the gateway and the renderer.
type Service struct {
	store    *store.Store
	gateway  Extractor
	renderer render.Renderer
	inspect  InspectFunc
	prompt   string
	log      zerolog.Logger

	mu       sync.Mutex
	inFlight map[int]struct{}
}

// Option customises a Service.
type Option func(*Service)

// WithInspector replaces pdfutil.Inspect.
func WithInspector(fn InspectFunc) Option { return func(s *Service) { s.inspect = fn } }

// WithPrompt sets the prompt used when a request carries none.
func WithPrompt(prompt string) Option { return func(s *Service) { s.prompt = prompt } }

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option { return func(s *Service) { s.log = log } }

// New builds a Service.
func New(st *store.Store, gw Extractor, r render.Renderer, opts ...Option) *Service {
	s := &Service{
		store:    st,
		gateway:  gw,
		renderer: r,
		inspect:  pdfutil.Inspect,
		log:      zerolog.Nop(),
		inFlight: make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store for read paths.
func (s *Service) Store() *store.Store { return s.store }

// Upload is a new document from a reviewer.
type Upload struct {
	// Name is the original filename.
	Name     string
	CaseName string
	Data     []byte
}

// Upload validates the document and creates a Pending record with the file
// attached. Nothing is created when validation fails.
func (s *Service) Upload(ctx context.Context, up Upload) (store.Invoice, error) {
	file, info, err := s.accept(up.Name, up.Data)
	if err != nil {
		return store.Invoice{}, err
	}
	id := s.store.Add(ctx, store.NewInvoice{
		CaseName: strings.TrimSpace(up.CaseName),
		File:     file.Name,
		Pages:    info.Pages,
	}, file)
	inv, _ := s.store.GetByID(id)
	return inv, nil
}

// Attach replaces the file behind an existing record, for example after a
// restart dropped the previous one.
func (s *Service) Attach(ctx context.Context, id int, name string, data []byte) (store.Invoice, error) {
	if _, ok := s.store.GetByID(id); !ok {
		return store.Invoice{}, fmt.Errorf("attach %d: %w", id, store.ErrNotFound)
	}
	file, info, err := s.accept(name, data)
	if err != nil {
		return store.Invoice{}, err
	}
	if _, err := s.store.Attach(ctx, id, file); err != nil {
		return store.Invoice{}, err
	}
	if err := s.store.Update(ctx, id, store.Patch{Pages: &info.Pages}); err != nil {
		return store.Invoice{}, err
	}
	inv, _ := s.store.GetByID(id)
	return inv, nil
}

func (s *Service) accept(name string, data []byte) (*attachment.File, *pdfutil.Info, error) {
	info, err := s.inspect(data)
	if err != nil {
		s.log.Info().Err(err).Str("file", name).Msg("upload rejected")
		return nil, nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = "invoice.pdf"
	}
	return &attachment.File{Name: name, ContentType: info.ContentType, Data: data}, info, nil
}

// SaveForm replaces the record's form data.
func (s *Service) SaveForm(ctx context.Context, id int, form map[string]string) (store.Invoice, error) {
	return s.Edit(ctx, id, store.Patch{Data: form})
}

// SetStatus assigns a reviewer status.
func (s *Service) SetStatus(ctx context.Context, id int, status model.Status) (store.Invoice, error) {
	return s.Edit(ctx, id, store.Patch{Status: &status})
}

// Edit applies case name, form and status changes in one update. The
// status, when given, must be one a reviewer can assign.
func (s *Service) Edit(ctx context.Context, id int, p store.Patch) (store.Invoice, error) {
	if p.Status != nil && !p.Status.Valid() {
		return store.Invoice{}, fmt.Errorf("%w %q", ErrInvalidStatus, *p.Status)
	}
	if p.CaseName != nil {
		name := strings.TrimSpace(*p.CaseName)
		p.CaseName = &name
	}
	if err := s.store.Update(ctx, id, p); err != nil {
		return store.Invoice{}, err
	}
	inv, _ := s.store.GetByID(id)
	return inv, nil
}

// Delete removes the record and its file.
func (s *Service) Delete(ctx context.Context, id int) {
	s.store.Delete(ctx, id)
}

// Extract sends the attached file to the extraction service. On success the
// form data and boxes are replaced in one update; on failure the record is
// left as it was. Extractions for different records run independently.
func (s *Service) Extract(ctx context.Context, id int, prompt string) (store.Invoice, *gateway.Result, error) {
	inv, ok := s.store.GetByID(id)
	if !ok {
		return store.Invoice{}, nil, fmt.Errorf("extract %d: %w", id, store.ErrNotFound)
	}
	if !inv.HasAttachment {
		return inv, nil, ErrAttachmentMissing
	}
	if !s.begin(id) {
		return inv, nil, ErrExtractionInProgress
	}
	defer s.end(id)

	if strings.TrimSpace(prompt) == "" {
		prompt = s.prompt
	}
	log := s.log.With().Int("invoice", id).Str("file", inv.Attachment.Name).Logger()
	log.Info().Msg("extraction started")
	res, err := s.gateway.Extract(ctx, inv.Attachment, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("extraction failed")
		return inv, nil, err
	}
	boxes := res.Boxes
	if err := s.store.Update(ctx, id, store.Patch{Data: res.Fields, Boxes: &boxes}); err != nil {
		// The record was deleted while the call was in flight.
		return inv, nil, err
	}
	updated, _ := s.store.GetByID(id)
	return updated, res, nil
}

// Extracting reports whether an extraction for id is in flight.
func (s *Service) Extracting(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[id]
	return ok
}

func (s *Service) begin(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Service) end(id int) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// OverlayView is what a client needs to draw boxes over page one.
type OverlayView struct {
	InvoiceID    int                 `json:"invoiceId"`
	Page         int                 `json:"page"`
	Width        int                 `json:"width"`
	Height       int                 `json:"height"`
	DisplayWidth float64             `json:"displayWidth"`
	Scale        float64             `json:"scale"`
	Rendered     bool                `json:"rendered"`
	Boxes        []overlay.Placement `json:"boxes"`
}

// Overlay renders page one to learn its intrinsic size and places the
// record's boxes for displayWidth. A zero displayWidth means intrinsic size.
// When rendering fails the view has Rendered false and no boxes.
func (s *Service) Overlay(ctx context.Context, id int, displayWidth float64) (*OverlayView, error) {
	inv, ok := s.store.GetByID(id)
	if !ok {
		return nil, fmt.Errorf("overlay %d: %w", id, store.ErrNotFound)
	}
	if !inv.HasAttachment {
		return nil, ErrAttachmentMissing
	}
	view := &OverlayView{InvoiceID: id, Page: 1, Scale: 1, Boxes: []overlay.Placement{}}
	page, err := s.renderer.Render(ctx, inv.Attachment.Data, 1)
	if err != nil {
		s.log.Warn().Err(err).Int("invoice", id).Msg("render failed, showing placeholder")
		view.DisplayWidth = displayWidth
		return view, nil
	}
	vp := overlay.NewViewport(overlay.Page{Width: float64(page.Width), Height: float64(page.Height)}, displayWidth)
	view.Width, view.Height = page.Width, page.Height
	view.DisplayWidth = vp.DisplayedWidth()
	view.Scale = vp.Scale()
	view.Rendered = true
	view.Boxes = vp.Place(inv.Boxes, 1)
	return view, nil
}

// Preview renders page one, shrunk to maxWidth when positive. rendered is
// false when a blank placeholder was returned instead.
func (s *Service) Preview(ctx context.Context, id int, maxWidth int) (img image.Image, rendered bool, err error) {
	inv, ok := s.store.GetByID(id)
	if !ok {
		return nil, false, fmt.Errorf("preview %d: %w", id, store.ErrNotFound)
	}
	if !inv.HasAttachment {
		return nil, false, ErrAttachmentMissing
	}
	page, err := s.renderer.Render(ctx, inv.Attachment.Data, 1)
	if err != nil {
		s.log.Warn().Err(err).Int("invoice", id).Msg("render failed, showing placeholder")
		return render.Thumbnail(render.Placeholder(placeholderWidth, placeholderHeight), maxWidth), false, nil
	}
	return render.Thumbnail(page.Image, maxWidth), true, nil
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dharsanguruparan/InvoiceDesk/internal/model"
	"github.com/dharsanguruparan/InvoiceDesk/internal/render"
	"github.com/dharsanguruparan/InvoiceDesk/internal/review"
	"github.com/dharsanguruparan/InvoiceDesk/internal/store"
)

const maxJSONBody = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGatewayHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"reachable": s.gateway != nil && s.gateway.Health(r.Context())})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.review.Store().Search(r.URL.Query().Get("q")))
}

// StatsResponse is the dashboard summary.
type StatsResponse struct {
	Total  int                  `json:"total"`
	Counts map[model.Status]int `json:"counts"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts := s.review.Store().StatusCounts()
	total := 0
	for _, n := range counts {
		total += n
	}
	respondJSON(w, http.StatusOK, StatsResponse{Total: total, Counts: counts})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	form, err := s.readUpload(w, r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	inv, err := s.review.Upload(r.Context(), review.Upload{Name: form.filename, CaseName: form.caseName, Data: form.data})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.invoiceID(w, r)
	if !ok {
		return
	}
	inv, found := s.review.Store().GetByID(id)
	if !found {
		s.respondErr(w, r, fmt.Errorf("get %d: %w", id, store.ErrNotFound))
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// PatchRequest carries the editable fields of a record.
type PatchRequest struct {
	CaseName *string           `json:"caseName"`
	Status   *model.Status     `json:"status"`
	Data     map[string]string `json:"data"`
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.invoiceID(w, r)
	if !ok {
		return
	}
	var req PatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	inv, err := s.review.Edit(r.Context(), id, store.Patch{
		CaseName: req.CaseName,
		Status:   req.Status,
		Data:     req.Data,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.invoiceID(w, r)
	if !ok {
		return
	}
	s.review.Delete(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveForm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.invoiceID(w, r)
	if !ok {
		return
	}
	var form map[string]string
	if !s.decode(w, r, &form) {
		return
	}
	inv, err := s.review.SaveForm(r.Context(), id, form)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// StatusRequest sets a review status.
type StatusRequest struct {
	Status model.Status `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.invoiceID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if !s.decode(w, r, &req) {
		return
	}
	inv, err := s.review.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	id, ok := s.invoiceID(w, r)
	if !ok {
		return
	}
	form, err := s.readUpload(w, r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	inv, err := s.review.Attach(r.Context(), id, form.filename, form.data)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// ExtractRequest optionally overrides the extraction prompt.
type ExtractRequest struct {
	Prompt string `json:"prompt"`
}

// ExtractResponse is the outcome of a synchronous extraction.
type ExtractResponse struct {
	Invoice       store.Invoice `json:"invoice"`
	ExecutionTime float64       `json:"executionTimeSeconds"`
	FilledFields  int           `json:"filledFields"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	id, ok := s.invoiceID(w, r)
	if !ok {
		return
	}
	var req ExtractRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async && s.dispatch != nil {
		inv, found := s.review.Store().GetByID(id)
		if !found {
			s.respondErr(w, r, fmt.Errorf("extract %d: %w", id, store.ErrNotFound))
			return
		}
		if !inv.HasAttachment {
			s.respondErr(w, r, review.ErrAttachmentMissing)
			return
		}
		job, err := s.dispatch.Dispatch(r.Context(), id, req.Prompt)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		w.Header().Set("Location", "/jobs/"+job.ID)
		respondJSON(w, http.StatusAccepted, job)
		return
	}
	inv, res, err := s.review.Extract(r.Context(), id, req.Prompt)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ExtractResponse{Invoice: inv, ExecutionTime: res.ExecutionTime, FilledFields: res.FilledFields()})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if s.dispatch == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	job, err := s.dispatch.Jobs().Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.invoiceID(w, r)
	if !ok {
		return
	}
	maxWidth, _ := strconv.Atoi(r.URL.Query().Get("maxWidth"))
	img, rendered, err := s.review.Preview(r.Context(), id, maxWidth)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Rendered", strconv.FormatBool(rendered))
	w.WriteHeader(http.StatusOK)
	if err := render.EncodePNG(w, img); err != nil {
		s.log.Warn().Err(err).Int("invoice", id).Msg("encode preview")
	}
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	id, ok := s.invoiceID(w, r)
	if !ok {
		return
	}
	var displayWidth float64
	if v := r.URL.Query().Get("displayWidth"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "displayWidth must be a non-negative number")
			return
		}
		displayWidth = parsed
	}
	view, err := s.review.Overlay(r.Context(), id, displayWidth)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	_, file, err := s.registry.Resolve(r.URL.RequestURI())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size(), 10))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

func (s *Server) handleReleaseAttachment(w http.ResponseWriter, r *http.Request) {
	s.registry.Release(r.URL.RequestURI())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) invoiceID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invoice id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dharsanguruparan/InvoiceDesk/internal/attachment"
	"github.com/dharsanguruparan/InvoiceDesk/internal/gateway"
	pdfutil "github.com/dharsanguruparan/InvoiceDesk/internal/pdf"
	"github.com/dharsanguruparan/InvoiceDesk/internal/processing"
	"github.com/dharsanguruparan/InvoiceDesk/internal/review"
	"github.com/dharsanguruparan/InvoiceDesk/internal/store"
)

type errorBody struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorBody{Error: msg})
}

// respondErr maps domain errors onto status codes.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var gwErr *gateway.Error
	var tooBig *http.MaxBytesError
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		respondError(w, http.StatusBadRequest, bad.msg)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, processing.ErrJobNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, attachment.ErrInvalidReference), errors.Is(err, attachment.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pdfutil.ErrNotPDF):
		respondError(w, http.StatusUnsupportedMediaType, "only PDF files supported")
	case errors.As(err, &tooBig):
		respondError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
	case errors.Is(err, review.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, review.ErrAttachmentMissing), errors.Is(err, review.ErrExtractionInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, gateway.ErrUnreachable), errors.Is(err, processing.ErrQueueFull):
		respondError(w, http.StatusServiceUnavailable, gateway.UserMessage(err))
	case errors.As(err, &gwErr):
		respondError(w, http.StatusBadGateway, gwErr.Message)
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// badRequest is a client error that is reported verbatim.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

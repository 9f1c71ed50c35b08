package circulation

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"librarian/internal/catalog"
	"librarian/internal/httpjson"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// MoveRequest is the optional body of the issue and return endpoints.
type MoveRequest struct {
	Member string `json:"member"`
}

// Routes mounts issue and return under a book reference. Both are writes.
func (h *Handler) Routes(r chi.Router, write func(http.Handler) http.Handler) {
	r.With(write).Post("/{ref}/issue", h.HandleIssue)
	r.With(write).Post("/{ref}/return", h.HandleReturn)
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMove(w, r)
	if !ok {
		return
	}

	receipt, err := h.service.Issue(r.Context(), chi.URLParam(r, "ref"), req.Member)
	if err != nil {
		writeError(w, err)
		return
	}

	httpjson.Write(w, http.StatusOK, receipt)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMove(w, r)
	if !ok {
		return
	}

	receipt, err := h.service.Return(r.Context(), chi.URLParam(r, "ref"), req.Member)
	if err != nil {
		writeError(w, err)
		return
	}

	httpjson.Write(w, http.StatusOK, receipt)
}

// An empty body means no member.
func decodeMove(w http.ResponseWriter, r *http.Request) (MoveRequest, bool) {
	var req MoveRequest
	if err := httpjson.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpjson.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return req, false
	}
	return req, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoCopiesAvailable):
		httpjson.Error(w, http.StatusConflict, "no_copies_available", err.Error())
	case errors.Is(err, ErrAllCopiesReturned):
		httpjson.Error(w, http.StatusConflict, "all_copies_returned", err.Error())
	default:
		catalog.WriteError(w, err)
	}
}

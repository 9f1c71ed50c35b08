package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"librarian/internal/httpjson"
	"librarian/internal/storage"
	"librarian/internal/validation"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the book endpoints. write wraps the mutating ones.
func (h *Handler) Routes(r chi.Router, write func(http.Handler) http.Handler) {
	r.Get("/", h.HandleList)
	r.Get("/{ref}", h.HandleGet)
	r.Get("/{ref}/lookup", h.HandleLookup)

	r.Group(func(r chi.Router) {
		r.Use(write)
		r.Post("/", h.HandleAdd)
		r.Patch("/{ref}", h.HandleUpdate)
		r.Delete("/{ref}", h.HandleDelete)
	})
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req NewBook
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	book, err := h.service.AddBook(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}

	httpjson.Write(w, http.StatusCreated, book)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	book, err := h.service.ResolveBook(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		WriteError(w, err)
		return
	}

	httpjson.Write(w, http.StatusOK, book)
}

func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Lookup(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		WriteError(w, err)
		return
	}

	httpjson.Write(w, http.StatusOK, view)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req BookPatch
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	book, err := h.service.UpdateBook(r.Context(), chi.URLParam(r, "ref"), req)
	if err != nil {
		WriteError(w, err)
		return
	}

	httpjson.Write(w, http.StatusOK, book)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBook(r.Context(), chi.URLParam(r, "ref")); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	availableOnly, _ := strconv.ParseBool(q.Get("available"))

	books, err := h.service.ListBooks(r.Context(), ListFilter{
		Query:         q.Get("q"),
		Category:      q.Get("category"),
		AvailableOnly: availableOnly,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	httpjson.Write(w, http.StatusOK, books)
}

// WriteError maps catalog and storage errors onto HTTP responses.
func WriteError(w http.ResponseWriter, err error) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		httpjson.Error(w, http.StatusBadRequest, "validation_failed", validationErr.Error())
	case errors.Is(err, ErrBookNotFound):
		httpjson.Error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpjson.Error(w, http.StatusConflict, "duplicate_key", err.Error())
	case errors.Is(err, ErrVersionConflict):
		httpjson.Error(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, storage.ErrUnavailable):
		httpjson.Error(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		httpjson.Error(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

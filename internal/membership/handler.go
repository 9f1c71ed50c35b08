package membership

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

// Routes mounts the member endpoints. write wraps the mutating ones.
func (h *Handler) Routes(r chi.Router, write func(http.Handler) http.Handler) {
	r.Get("/", h.HandleList)
	r.With(write).Post("/", h.HandleRegister)
	r.Get("/{ref}", h.HandleGet)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req Registration
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	member, err := h.service.RegisterMember(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	httpjson.Write(w, http.StatusCreated, member)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.ResolveMember(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, err)
		return
	}

	httpjson.Write(w, http.StatusOK, member)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	members, err := h.service.ListMembers(r.Context(), ListFilter{
		Query:      q.Get("q"),
		MemberType: MemberType(q.Get("type")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	httpjson.Write(w, http.StatusOK, members)
}

func writeError(w http.ResponseWriter, err error) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		httpjson.Error(w, http.StatusBadRequest, "validation_failed", validationErr.Error())
	case errors.Is(err, ErrMemberNotFound):
		httpjson.Error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpjson.Error(w, http.StatusConflict, "duplicate_key", err.Error())
	case errors.Is(err, storage.ErrUnavailable):
		httpjson.Error(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		httpjson.Error(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

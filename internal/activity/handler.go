package activity

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"librarian/internal/httpjson"
)

type Handler struct {
	journal *Journal
}

func NewHandler(journal *Journal) *Handler {
	return &Handler{journal: journal}
}

// Routes mounts GET / on r. ?aggregate=<uuid> narrows to one book or member,
// otherwise ?after=<id> pages through the whole journal.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.HandleList)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	if raw := q.Get("aggregate"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid_request", "invalid aggregate ID")
			return
		}
		entries, err := h.journal.ForAggregate(r.Context(), id, limit)
		if err != nil {
			httpjson.Error(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		httpjson.Write(w, http.StatusOK, entries)
		return
	}

	var after int64
	if raw := q.Get("after"); raw != "" {
		var err error
		if after, err = strconv.ParseInt(raw, 10, 64); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid_request", "invalid cursor")
			return
		}
	}

	entries, err := h.journal.Stream(r.Context(), after, limit)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, entries)
}

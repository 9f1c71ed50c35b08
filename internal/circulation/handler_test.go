package circulation_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarian/internal/circulation"
	"librarian/internal/httpjson"
	"librarian/internal/storage/storagetest"
)

func TestHandlerIssueAndReturn(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	b := f.addBook(t, 1, 1)
	m := f.addMember(t, "Asha Rao")

	r := chi.NewRouter()
	circulation.NewHandler(f.ledger).Routes(r, func(next http.Handler) http.Handler { return next })

	post := func(path, body string) (*httptest.ResponseRecorder, httpjson.ErrorBody) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body)))
		var eb httpjson.ErrorBody
		if rec.Code >= 400 {
			_ = json.Unmarshal(rec.Body.Bytes(), &eb)
		}
		return rec, eb
	}

	rec, _ := post("/1/issue", `{"member":"`+m.Code+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var receipt circulation.Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, b.Code, receipt.BookCode)
	assert.Equal(t, 0, receipt.Available)
	assert.Equal(t, m.Code, receipt.MemberCode)

	rec, eb := post("/1/issue", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_copies_available", eb.Error)

	rec, _ = post("/1/return", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, eb = post("/1/return", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "all_copies_returned", eb.Error)

	rec, eb = post("/77/issue", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", eb.Error)

	rec, _ = post("/1/issue", `{"member":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarian/internal/auth"
	"librarian/internal/config"
	"librarian/internal/server"
	"librarian/internal/storage/storagetest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)

	return &config.Config{
		HTTP: config.HTTP{Addr: "127.0.0.1:0"},
		Auth: config.Auth{
			AdminUsername:      "admin",
			AdminPasswordHash:  hash,
			SessionTTL:         time.Hour,
			LoginRatePerMinute: 10,
			PurgeSchedule:      "@every 1h",
		},
		Global: config.Global{ShutdownTimeout: time.Second},
	}
}

type apiClient struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func (c *apiClient) call(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.srv.URL+path, &buf)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPIEndToEnd(t *testing.T) {
	srv := httptest.NewServer(server.New(testConfig(t), storagetest.NewSQLite(t), nil).Handler())
	t.Cleanup(srv.Close)
	api := &apiClient{t: t, srv: srv}

	assert.Equal(t, http.StatusOK, api.call(http.MethodGet, "/healthz", nil, nil))

	// Writes need a session.
	assert.Equal(t, http.StatusUnauthorized, api.call(http.MethodPost, "/api/v1/books", map[string]any{"title": "Godan"}, nil))

	var session auth.Session
	require.Equal(t, http.StatusOK, api.call(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin", "password": "s3cret"}, &session))
	api.token = session.Token

	var member struct{ Code string }
	require.Equal(t, http.StatusCreated, api.call(http.MethodPost, "/api/v1/members", map[string]string{
		"name": "Asha Rao", "member_type": "teacher", "gender": "female", "phone": "+91 98765 43210",
	}, &member))
	assert.Equal(t, "AIPSMEM0001", member.Code)

	assert.Equal(t, http.StatusBadRequest, api.call(http.MethodPost, "/api/v1/members", map[string]string{
		"name": "R2", "member_type": "robot", "gender": "other",
	}, nil))

	var book struct {
		Code            string
		AvailableCopies int `json:"available_copies"`
	}
	require.Equal(t, http.StatusCreated, api.call(http.MethodPost, "/api/v1/books", map[string]any{
		"title": "Godan", "author": "Premchand", "total_copies": 1,
	}, &book))
	assert.Equal(t, "AIPSLIB000001", book.Code)
	assert.Equal(t, 1, book.AvailableCopies)

	var receipt struct {
		Available  int    `json:"available"`
		MemberCode string `json:"member_code"`
	}
	require.Equal(t, http.StatusOK, api.call(http.MethodPost, "/api/v1/books/1/issue", map[string]string{"member": "1"}, &receipt))
	assert.Equal(t, 0, receipt.Available)
	assert.Equal(t, "AIPSMEM0001", receipt.MemberCode)

	assert.Equal(t, http.StatusConflict, api.call(http.MethodPost, "/api/v1/books/1/issue", nil, nil))

	var view struct {
		CanIssue bool `json:"can_issue"`
	}
	require.Equal(t, http.StatusOK, api.call(http.MethodGet, "/api/v1/books/000001/lookup", nil, &view))
	assert.False(t, view.CanIssue)

	var stats server.Stats
	require.Equal(t, http.StatusOK, api.call(http.MethodGet, "/api/v1/stats", nil, &stats))
	assert.Equal(t, 1, stats.Titles)
	assert.Equal(t, 1, stats.CopiesOut)
	assert.Equal(t, 1, stats.Members)

	require.Equal(t, http.StatusOK, api.call(http.MethodPost, "/api/v1/books/aipslib000001/return", nil, &receipt))
	assert.Equal(t, 1, receipt.Available)
	assert.Equal(t, http.StatusConflict, api.call(http.MethodPost, "/api/v1/books/1/return", nil, nil))

	var entries []struct{ Kind string }
	require.Equal(t, http.StatusOK, api.call(http.MethodGet, "/api/v1/activity", nil, &entries))
	assert.Len(t, entries, 4)

	assert.Equal(t, http.StatusNoContent, api.call(http.MethodPost, "/api/v1/auth/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, api.call(http.MethodDelete, "/api/v1/books/1", nil, nil))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := server.New(testConfig(t), storagetest.NewSQLite(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.PurgeSchedule = "not a schedule"

	err := server.New(cfg, storagetest.NewSQLite(t), nil).Run(context.Background())
	assert.Error(t, err)
}

func TestPurgerRun(t *testing.T) {
	db := storagetest.NewSQLite(t)
	authSvc := auth.NewService(db, auth.Config{AdminUsername: "admin"}, nil)
	sessions := auth.NewSessionStore(db)
	_, err := sessions.Create(context.Background(), "admin", -time.Minute)
	require.NoError(t, err)

	server.NewPurger(authSvc, nil).Run()

	n, err := sessions.PurgeExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRequestsAreLoggedThroughSlog(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))
	srv := httptest.NewServer(server.New(testConfig(t), storagetest.NewSQLite(t), logger).Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	var served map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n")) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec), string(line))
		if rec["msg"] == "request served" {
			served = rec
		}
	}
	require.NotNil(t, served, out.String())
	assert.Equal(t, "GET", served["method"])
	assert.Equal(t, "/healthz", served["path"])
	assert.EqualValues(t, http.StatusOK, served["status"])
	assert.NotEmpty(t, served["request_id"])
}

// Package server wires the services into one chi router and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"

	"librarian/internal/activity"
	"librarian/internal/auth"
	"librarian/internal/catalog"
	"librarian/internal/circulation"
	"librarian/internal/config"
	"librarian/internal/httpjson"
	"librarian/internal/membership"
	"librarian/internal/sequence"
	"librarian/internal/storage"
)

type Server struct {
	cfg     *config.Config
	db      *sqlx.DB
	logger  *slog.Logger
	router  chi.Router
	auth    auth.Service
	books   catalog.Service
	members membership.Service
	purger  *Purger
}

// New builds every service on db and mounts the API.
func New(cfg *config.Config, db *sqlx.DB, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	allocator := sequence.NewAllocator(db, logger.With("component", "sequence"))
	journal := activity.NewJournal(db, logger.With("component", "activity"))
	books := catalog.NewService(db, allocator, journal, logger.With("component", "catalog"))
	members := membership.NewService(db, allocator, journal, logger.With("component", "membership"))
	ledger := circulation.NewService(db, books, members, journal, logger.With("component", "circulation"))
	authSvc := auth.NewService(db, auth.Config{
		AdminUsername:      cfg.Auth.AdminUsername,
		AdminPasswordHash:  cfg.Auth.AdminPasswordHash,
		SessionTTL:         cfg.Auth.SessionTTL,
		LoginRatePerMinute: cfg.Auth.LoginRatePerMinute,
	}, logger.With("component", "auth"))

	s := &Server{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		auth:    authSvc,
		books:   books,
		members: members,
		purger:  NewPurger(authSvc, logger.With("component", "purger")),
	}

	write := auth.RequireBearer(authSvc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(requestLogger{logger: s.logger}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", auth.NewHandler(authSvc).Routes)
		r.Route("/books", func(r chi.Router) {
			catalog.NewHandler(books).Routes(r, write)
			circulation.NewHandler(ledger).Routes(r, write)
		})
		r.Route("/members", func(r chi.Router) {
			membership.NewHandler(members).Routes(r, write)
		})
		r.Route("/activity", activity.NewHandler(journal).Routes)
		r.Get("/stats", s.handleStats)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	if err := s.purger.Start(s.cfg.Auth.PurgeSchedule); err != nil {
		return err
	}
	defer s.purger.Stop()

	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", s.cfg.Global.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Global.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		httpjson.Error(w, http.StatusServiceUnavailable, "unavailable", storage.Classify(err).Error())
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats is the body of GET /api/v1/stats.
type Stats struct {
	catalog.Stats
	Members int `json:"members"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	books, err := s.books.Stats(r.Context())
	if err != nil {
		catalog.WriteError(w, err)
		return
	}
	members, err := s.members.CountMembers(r.Context())
	if err != nil {
		catalog.WriteError(w, err)
		return
	}

	httpjson.Write(w, http.StatusOK, Stats{Stats: books, Members: members})
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"librarian/internal/auth"
)

const purgeTimeout = 30 * time.Second

// Purger deletes expired admin sessions on a cron schedule.
type Purger struct {
	auth   auth.Service
	logger *slog.Logger
	cron   *cron.Cron
}

func NewPurger(authSvc auth.Service, logger *slog.Logger) *Purger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Purger{
		auth:   authSvc,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start schedules the purge. An empty schedule disables it.
func (p *Purger) Start(schedule string) error {
	if schedule == "" {
		p.logger.Info("session purge disabled")
		return nil
	}

	if _, err := p.cron.AddFunc(schedule, p.Run); err != nil {
		return fmt.Errorf("invalid session purge schedule %q: %w", schedule, err)
	}
	p.cron.Start()
	p.logger.Info("session purge scheduled", "schedule", schedule)

	return nil
}

// Run purges once.
func (p *Purger) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	if _, err := p.auth.PurgeExpired(ctx); err != nil {
		p.logger.Error("session purge failed", "error", err)
	}
}

// Stop waits for a running purge to finish.
func (p *Purger) Stop() {
	<-p.cron.Stop().Done()
}

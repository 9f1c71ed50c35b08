package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"librarian/internal/storage"
)

// Creating the row at 1 and bumping an existing row happen in one statement,
// so there is never a read-then-write window between concurrent callers.
const incrementQuery = `
	INSERT INTO counters (namespace, sequence) VALUES (?, 1)
	ON CONFLICT (namespace) DO UPDATE SET sequence = counters.sequence + 1
	RETURNING sequence
`

// allocator implements the Allocator interface.
type allocator struct {
	db          *sqlx.DB
	logger      *slog.Logger
	tracer      trace.Tracer
	allocations metric.Int64Counter
}

// NewAllocator creates an Allocator backed by the counters table.
func NewAllocator(db *sqlx.DB, logger *slog.Logger) Allocator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	allocations, _ := otel.Meter("librarian/sequence").Int64Counter(
		"librarian.sequence.allocations",
		metric.WithDescription("Codes allocated per namespace"),
	)

	return &allocator{
		db:          db,
		logger:      logger,
		tracer:      otel.Tracer("librarian/sequence"),
		allocations: allocations,
	}
}

// Allocate atomically increments the namespace counter and formats the new value.
func (a *allocator) Allocate(ctx context.Context, ns Namespace) (string, error) {
	if err := ns.validate(); err != nil {
		return "", err
	}

	ctx, span := a.tracer.Start(ctx, "sequence.allocate",
		trace.WithAttributes(
			attribute.String("namespace", ns.Prefix),
			attribute.Int("width", ns.Width),
		),
	)
	defer span.End()

	var seq int64
	if err := a.db.QueryRowxContext(ctx, a.db.Rebind(incrementQuery), ns.Prefix).Scan(&seq); err != nil {
		err = storage.Classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "increment failed")
		a.logger.Error("sequence increment failed", "namespace", ns.Prefix, "error", err)
		return "", fmt.Errorf("allocate %s: %w", ns.Prefix, err)
	}

	code := ns.Format(seq)
	span.SetAttributes(attribute.Int64("sequence", seq))
	a.allocations.Add(ctx, 1, metric.WithAttributes(attribute.String("namespace", ns.Prefix)))
	a.logger.Debug("code allocated", "namespace", ns.Prefix, "code", code)

	return code, nil
}

// Current reads the last issued value without touching the counter.
func (a *allocator) Current(ctx context.Context, ns Namespace) (int64, error) {
	if err := ns.validate(); err != nil {
		return 0, err
	}

	var seq int64
	err := a.db.QueryRowxContext(ctx, a.db.Rebind(`SELECT sequence FROM counters WHERE namespace = ?`), ns.Prefix).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", ns.Prefix, storage.Classify(err))
	}

	return seq, nil
}

// Package activity keeps an append-only journal of catalog, membership and
// circulation changes.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librarian/internal/storage"
)

const (
	AggregateBook   = "book"
	AggregateMember = "member"

	defaultLimit = 50
	maxLimit     = 500
)

var payloadJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmptyKind is returned when an entry is appended without a kind.
var ErrEmptyKind = errors.New("activity kind must not be empty")

// Entry is one journal record.
type Entry struct {
	ID            int64           `json:"id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

type entryRow struct {
	ID            int64     `db:"id"`
	AggregateID   uuid.UUID `db:"aggregate_id"`
	AggregateType string    `db:"aggregate_type"`
	Kind          string    `db:"kind"`
	Payload       string    `db:"payload"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r entryRow) entry() Entry {
	return Entry{
		ID:            r.ID,
		AggregateID:   r.AggregateID,
		AggregateType: r.AggregateType,
		Kind:          r.Kind,
		Payload:       json.RawMessage(r.Payload),
		CreatedAt:     r.CreatedAt,
	}
}

// Journal appends and reads activity entries.
type Journal struct {
	db     *sqlx.DB
	logger *slog.Logger
	tracer trace.Tracer
}

// NewJournal creates a journal on the activity table.
func NewJournal(db *sqlx.DB, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Journal{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("librarian/activity"),
	}
}

// Append stores one entry and returns its id.
func (j *Journal) Append(ctx context.Context, aggregateID uuid.UUID, aggregateType, kind string, payload any) (int64, error) {
	if kind == "" {
		return 0, ErrEmptyKind
	}

	ctx, span := j.tracer.Start(ctx, "activity.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.String("aggregate.type", aggregateType),
			attribute.String("activity.kind", kind),
		),
	)
	defer span.End()

	data, err := payloadJSON.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	var id int64
	err = j.db.QueryRowxContext(ctx, j.db.Rebind(`
		INSERT INTO activity (aggregate_id, aggregate_type, kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`), aggregateID, aggregateType, kind, string(data), time.Now().UTC()).Scan(&id)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("insert activity: %w", storage.Classify(err))
	}

	span.SetAttributes(attribute.Int64("activity.id", id))
	return id, nil
}

// Record appends an entry and only logs a failure. The journal is secondary
// bookkeeping; the change it describes has already been committed.
func (j *Journal) Record(ctx context.Context, aggregateID uuid.UUID, aggregateType, kind string, payload any) {
	if _, err := j.Append(ctx, aggregateID, aggregateType, kind, payload); err != nil {
		j.logger.Warn("activity not recorded",
			"aggregate_id", aggregateID.String(),
			"kind", kind,
			"error", err,
		)
	}
}

// ForAggregate returns the newest entries of one aggregate, newest first.
func (j *Journal) ForAggregate(ctx context.Context, aggregateID uuid.UUID, limit int) ([]Entry, error) {
	ctx, span := j.tracer.Start(ctx, "activity.for_aggregate",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID.String())),
	)
	defer span.End()

	var rows []entryRow
	err := j.db.SelectContext(ctx, &rows, j.db.Rebind(`
		SELECT id, aggregate_id, aggregate_type, kind, payload, created_at
		FROM activity
		WHERE aggregate_id = ?
		ORDER BY id DESC
		LIMIT ?
	`), aggregateID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", storage.Classify(err))
	}

	span.SetAttributes(attribute.Int("activity.loaded", len(rows)))
	return toEntries(rows), nil
}

// Stream returns up to batchSize entries with an id greater than fromID, oldest first.
func (j *Journal) Stream(ctx context.Context, fromID int64, batchSize int) ([]Entry, error) {
	ctx, span := j.tracer.Start(ctx, "activity.stream",
		trace.WithAttributes(
			attribute.Int64("from.id", fromID),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	var rows []entryRow
	err := j.db.SelectContext(ctx, &rows, j.db.Rebind(`
		SELECT id, aggregate_id, aggregate_type, kind, payload, created_at
		FROM activity
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?
	`), fromID, clampLimit(batchSize))
	if err != nil {
		return nil, fmt.Errorf("query activity stream: %w", storage.Classify(err))
	}

	span.SetAttributes(attribute.Int("activity.streamed", len(rows)))
	return toEntries(rows), nil
}

func toEntries(rows []entryRow) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	}
	return limit
}

// Package lookup resolves the loosely typed references operators enter
// (UUIDs, codes with or without padding, any letter case) to a row id.
package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librarian/internal/sequence"
	"librarian/internal/storage"
)

// ErrNoMatch is returned when no strategy matched the token.
var ErrNoMatch = errors.New("no matching record")

// Strategy names the rule that matched, in the order they are tried.
type Strategy string

const (
	ByID             Strategy = "id"
	ByCode           Strategy = "code"
	ByPaddedNumber   Strategy = "padded_number"
	ByNumericTail    Strategy = "numeric_tail"
	ByCodeIgnoreCase Strategy = "code_ignore_case"
)

// Table is a table with uuid "id" and text "code" columns whose codes belong to NS.
type Table struct {
	Name string
	NS   sequence.Namespace
}

var tracer = otel.Tracer("librarian/lookup")

// Resolve returns the id of the first row matched by, in order: the token as
// an id; the token as an exact code; a numeric token padded to the namespace
// width; a numeric token compared to the numeric tail of every code in the
// namespace; the token as a case-insensitive code. First match wins.
func Resolve(ctx context.Context, db *sqlx.DB, table Table, token string) (uuid.UUID, Strategy, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return uuid.Nil, "", ErrNoMatch
	}

	ctx, span := tracer.Start(ctx, "lookup.resolve",
		trace.WithAttributes(
			attribute.String("table", table.Name),
			attribute.String("token", token),
		),
	)
	defer span.End()

	for _, step := range table.steps(token) {
		id, err := queryID(ctx, db, step.query, step.args...)
		if errors.Is(err, ErrNoMatch) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return uuid.Nil, "", err
		}
		span.SetAttributes(attribute.String("strategy", string(step.strategy)))
		return id, step.strategy, nil
	}

	return uuid.Nil, "", ErrNoMatch
}

type step struct {
	strategy Strategy
	query    string
	args     []any
}

func (t Table) steps(token string) []step {
	var steps []step

	if id, err := uuid.Parse(token); err == nil {
		steps = append(steps, step{ByID, "SELECT id FROM " + t.Name + " WHERE id = ?", []any{id}})
	}

	steps = append(steps, step{ByCode, "SELECT id FROM " + t.Name + " WHERE code = ?", []any{token}})

	if padded, ok := t.NS.Pad(token); ok {
		// Tail start is derived from the prefix length, never from input.
		tailFrom := len(t.NS.Prefix) + 1
		steps = append(steps,
			step{ByPaddedNumber, "SELECT id FROM " + t.Name + " WHERE code = ?", []any{padded}},
			step{ByNumericTail, fmt.Sprintf(
				"SELECT id FROM %s WHERE SUBSTR(code, 1, %d) = ? AND LTRIM(SUBSTR(code, %d), '0') = ? ORDER BY code LIMIT 1",
				t.Name, len(t.NS.Prefix), tailFrom,
			), []any{t.NS.Prefix, sequence.Tail(token)}},
		)
	}

	steps = append(steps, step{ByCodeIgnoreCase,
		"SELECT id FROM " + t.Name + " WHERE LOWER(code) = LOWER(?) ORDER BY code LIMIT 1", []any{token}})

	return steps
}

func queryID(ctx context.Context, db *sqlx.DB, query string, args ...any) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.QueryRowxContext(ctx, db.Rebind(query), args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrNoMatch
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve: %w", storage.Classify(err))
	}
	return id, nil
}

package chaos

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"librarian/internal/circulation"
)

// CountInvariant counts books whose available count left [0, total].
// Books without a recorded total are only checked against zero.
func CountInvariant(db *sqlx.DB) Probe {
	return Probe{
		Name: "count_invariant_breaches",
		Query: func(ctx context.Context) (float64, error) {
			var breaches int
			err := db.QueryRowxContext(ctx, `
				SELECT COUNT(*) FROM books
				WHERE available_copies < 0 OR (total_copies > 0 AND available_copies > total_copies)
			`).Scan(&breaches)
			return float64(breaches), err
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// IssueStorm fires concurrency simultaneous issues of one book, then puts the
// copies it managed to issue back. The issues record no borrower, so the
// rollback restores the count directly instead of going through Return,
// which would pop a real borrower entry.
func IssueStorm(db *sqlx.DB, ledger circulation.Service, bookRef string, concurrency int) Experiment {
	var mu sync.Mutex
	var bookID uuid.UUID
	issued := 0

	return Experiment{
		Name:        "concurrent-issue-storm",
		Hypothesis:  "Concurrent issues of one title never drive its available count out of [0, total]",
		SteadyState: []Probe{CountInvariant(db)},
		Method: func(ctx context.Context) (map[string]float64, error) {
			var wg sync.WaitGroup
			var refused, failed int
			var firstErr error

			for i := 0; i < concurrency; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					receipt, err := ledger.Issue(ctx, bookRef, "")

					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						issued++
						bookID = receipt.BookID
					case errors.Is(err, circulation.ErrNoCopiesAvailable):
						refused++
					default:
						failed++
						if firstErr == nil {
							firstErr = err
						}
					}
				}()
			}
			wg.Wait()

			observed := map[string]float64{
				"issued":  float64(issued),
				"refused": float64(refused),
				"failed":  float64(failed),
			}
			return observed, firstErr
		},
		Rollback: func(ctx context.Context) error {
			mu.Lock()
			n, id := issued, bookID
			mu.Unlock()
			if n == 0 {
				return nil
			}

			_, err := db.ExecContext(ctx, db.Rebind(`
				UPDATE books
				SET available_copies = available_copies + ?, version = version + 1
				WHERE id = ?
			`), n, id)
			if err != nil {
				return fmt.Errorf("restore %d copies: %w", n, err)
			}
			return nil
		},
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

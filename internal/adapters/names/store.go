package names

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okian/ageguess/pkg/metrics"
)

// StorePool samples names from the SQLite names table.
type StorePool struct {
	db *sql.DB
}

// NewStorePool wraps an already migrated database.
func NewStorePool(db *sql.DB) *StorePool {
	return &StorePool{db: db}
}

// Seed inserts names that are not yet stored and returns how many were added.
func (p *StorePool) Seed(ctx context.Context, list []string) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin seed: %w", ErrNamesStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO names (name) VALUES (?)`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare seed: %w", ErrNamesStore, err)
	}
	defer stmt.Close()

	added := 0
	for _, name := range list {
		res, err := stmt.ExecContext(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("%w: seed %q: %w", ErrNamesStore, name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit seed: %w", ErrNamesStore, err)
	}
	return added, nil
}

// Sample returns up to n distinct random names. Callers validate the count
// with subjects.SamplePool.
func (p *StorePool) Sample(ctx context.Context, n int) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name FROM names ORDER BY RANDOM() LIMIT ?`, n)
	if err != nil {
		metrics.RecordStoreError("names", "sample")
		return nil, fmt.Errorf("%w: sample: %w", ErrNamesStore, err)
	}
	defer rows.Close()

	out := make([]string, 0, n)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrNamesStore, err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: sample: %w", ErrNamesStore, err)
	}
	return out, nil
}

// Next returns one random stored name.
func (p *StorePool) Next(ctx context.Context) (string, error) {
	list, err := p.Sample(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", ErrNoNames
	}
	return list[0], nil
}

// Count returns the number of stored names.
func (p *StorePool) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM names`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrNamesStore, err)
	}
	return n, nil
}

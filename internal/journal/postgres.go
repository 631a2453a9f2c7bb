package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/postgres"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_runs (
    run_id        TEXT PRIMARY KEY,
    kind          TEXT NOT NULL,
    stage         TEXT NOT NULL,
    content_types TEXT[] NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL,
    error_count   INTEGER NOT NULL,
    outcome       TEXT NOT NULL
)`

// retainRuns bounds the table; older rows are pruned as new runs are recorded.
const retainRuns = 10000

// Postgres persists entries in the index_runs table.
type Postgres struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewPostgres creates the journal and its table if needed.
func NewPostgres(ctx context.Context, db *postgres.Client) (*Postgres, error) {
	if _, err := db.DB.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating index_runs table: %w", err)
	}
	return &Postgres{
		db:     db,
		logger: slog.Default().With("component", "run-journal"),
	}, nil
}

func (p *Postgres) Record(ctx context.Context, e Entry) error {
	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_runs (run_id, kind, stage, content_types, started_at, duration_ms, error_count, outcome)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.RunID, e.Kind, e.Stage, pq.Array(e.ContentTypes), e.StartedAt.UTC(),
			e.Duration.Milliseconds(), e.ErrorCount, string(e.Outcome),
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM index_runs WHERE run_id IN (
			     SELECT run_id FROM index_runs ORDER BY started_at DESC OFFSET $1)`, retainRuns)
		return err
	})
	if err != nil {
		return fmt.Errorf("recording run %s: %w", e.RunID, err)
	}
	p.logger.Debug("run recorded", "run_id", e.RunID, "outcome", e.Outcome)
	return nil
}

// Recent returns up to limit entries, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT run_id, kind, stage, content_types, started_at, duration_ms, error_count, outcome
		 FROM index_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			durationMS int64
			outcome    string
		)
		if err := rows.Scan(&e.RunID, &e.Kind, &e.Stage, pq.Array(&e.ContentTypes),
			&e.StartedAt, &durationMS, &e.ErrorCount, &outcome); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.Outcome = Outcome(strings.TrimSpace(outcome))
		out = append(out, e)
	}
	return out, rows.Err()
}

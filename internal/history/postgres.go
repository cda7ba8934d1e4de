package history

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/surveyimport/internal/core"
)

// Schema creates the history table. It is safe to run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS import_runs (
	run_id          UUID PRIMARY KEY,
	survey_id       TEXT NOT NULL,
	file_name       TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	total_rows      INTEGER NOT NULL DEFAULT 0,
	processed_rows  INTEGER NOT NULL DEFAULT 0,
	skipped_rows    INTEGER NOT NULL DEFAULT 0,
	error_count     INTEGER NOT NULL DEFAULT 0,
	skip_invalid    BOOLEAN NOT NULL DEFAULT FALSE,
	requester_ip    INET,
	requester_agent TEXT,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS import_runs_finished_at_idx ON import_runs (finished_at DESC);
`

const insertRun = `
INSERT INTO import_runs (
	run_id, survey_id, file_name, status, total_rows, processed_rows,
	skipped_rows, error_count, skip_invalid, requester_ip, requester_agent,
	started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (run_id) DO UPDATE SET
	status = EXCLUDED.status,
	total_rows = EXCLUDED.total_rows,
	processed_rows = EXCLUDED.processed_rows,
	skipped_rows = EXCLUDED.skipped_rows,
	error_count = EXCLUDED.error_count,
	skip_invalid = EXCLUDED.skip_invalid,
	finished_at = EXCLUDED.finished_at`

const selectRecent = `
SELECT run_id, survey_id, file_name, status, total_rows, processed_rows,
	skipped_rows, error_count, skip_invalid, requester_ip, requester_agent,
	started_at, finished_at
FROM import_runs
ORDER BY finished_at DESC
LIMIT $1`

// PostgresStore persists summaries in the import_runs table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ core.HistoryStore = (*PostgresStore)(nil)

// NewPostgresStore creates a store on an existing pool and ensures the
// schema exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return nil, fmt.Errorf("create import_runs schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Record upserts a summary by run id.
func (p *PostgresStore) Record(ctx context.Context, s core.RunSummary) error {
	id, err := uuid.Parse(s.RunID)
	if err != nil {
		return fmt.Errorf("record run %q: %w", s.RunID, err)
	}

	_, err = p.pool.Exec(ctx, insertRun,
		pgtype.UUID{Bytes: id, Valid: true},
		s.SurveyID,
		s.FileName,
		string(s.Phase),
		s.TotalRows,
		s.ProcessedRows,
		s.SkippedRows,
		s.ErrorCount,
		s.SkipInvalid,
		parseIP(s.RequesterIP),
		pgtype.Text{String: s.RequesterAgent, Valid: s.RequesterAgent != ""},
		pgtype.Timestamptz{Time: s.StartedAt, Valid: true},
		pgtype.Timestamptz{Time: s.FinishedAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", s.RunID, err)
	}
	return nil
}

// Recent returns up to limit summaries, most recently finished first.
func (p *PostgresStore) Recent(ctx context.Context, limit int) ([]core.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.pool.Query(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("query import history: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("scan import history: %w", err)
	}
	return out, nil
}

// PurgeBefore deletes summaries that finished before cutoff.
func (p *PostgresStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, "DELETE FROM import_runs WHERE finished_at < $1",
		pgtype.Timestamptz{Time: cutoff, Valid: true})
	if err != nil {
		return 0, fmt.Errorf("purge import history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRun(row pgx.CollectableRow) (core.RunSummary, error) {
	var (
		id         pgtype.UUID
		status     string
		ip         *netip.Addr
		agent      pgtype.Text
		startedAt  pgtype.Timestamptz
		finishedAt pgtype.Timestamptz
		s          core.RunSummary
	)

	err := row.Scan(
		&id, &s.SurveyID, &s.FileName, &status, &s.TotalRows, &s.ProcessedRows,
		&s.SkippedRows, &s.ErrorCount, &s.SkipInvalid, &ip, &agent,
		&startedAt, &finishedAt,
	)
	if err != nil {
		return core.RunSummary{}, err
	}

	if id.Valid {
		s.RunID = uuid.UUID(id.Bytes).String()
	}
	s.Phase = core.Phase(status)
	if ip != nil {
		s.RequesterIP = ip.String()
	}
	if agent.Valid {
		s.RequesterAgent = agent.String
	}
	s.StartedAt = startedAt.Time
	s.FinishedAt = finishedAt.Time
	return s, nil
}

// parseIP strips a port and returns nil for anything that is not an address.
func parseIP(raw string) *netip.Addr {
	if raw == "" {
		return nil
	}
	host := raw
	if h, _, err := net.SplitHostPort(raw); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}

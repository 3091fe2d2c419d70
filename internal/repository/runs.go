package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docmatch/constants"
	"github.com/joseph-ayodele/docmatch/internal/entity"
)

const runSchema = `
CREATE TABLE IF NOT EXISTS match_run (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMP NOT NULL,
	elapsed_ms  INTEGER NOT NULL,
	pages       INTEGER NOT NULL,
	matched     INTEGER NOT NULL,
	unresolved  INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	match_rate  REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS page_result (
	run_id       TEXT NOT NULL REFERENCES match_run(id) ON DELETE CASCADE,
	page         INTEGER NOT NULL,
	status       TEXT NOT NULL,
	identity_key TEXT NOT NULL,
	identifier   TEXT NOT NULL DEFAULT '',
	score        REAL NOT NULL DEFAULT 0,
	cluster      INTEGER NOT NULL,
	details      TEXT,
	error        TEXT,
	PRIMARY KEY (run_id, page)
);`

// RunSummary is one stored batch run.
type RunSummary struct {
	ID        string
	Source    string
	StartedAt time.Time
	Summary   entity.Summary
}

type RunRepository interface {
	Migrate(ctx context.Context) error
	SaveRun(ctx context.Context, res *entity.BatchResult) error
	ListRuns(ctx context.Context) ([]RunSummary, error)
	PageResults(ctx context.Context, runID string) ([]entity.PageResult, error)
}

type runRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewRunRepository(db *sql.DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log}
}

func (r *runRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, runSchema); err != nil {
		r.log.Error("run store migrate failed", "err", err)
		return dbError("migrate run store", err)
	}
	return nil
}

func (r *runRepo) SaveRun(ctx context.Context, res *entity.BatchResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	s := res.Summary
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO match_run (id, source, started_at, elapsed_ms, pages, matched, unresolved, failed, match_rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Source, res.StartedAt.UTC(), res.ElapsedMS, s.Pages, s.Matched, s.Unresolved, s.Failed, s.MatchRate,
	); err != nil {
		r.log.Error("match_run insert failed", "run_id", res.RunID, "err", err)
		return dbError("insert run", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO page_result (run_id, page, status, identity_key, identifier, score, cluster, details, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return dbError("prepare page insert", err)
	}
	defer stmt.Close()

	for _, p := range res.Pages {
		var details []byte
		if len(p.Details) > 0 {
			if b, err := json.Marshal(p.Details); err == nil {
				details = b
			}
		}
		if _, err := stmt.ExecContext(ctx, res.RunID, p.Page, string(p.Status), p.IdentityKey,
			p.MatchedIdentifier, p.Score, p.Cluster, nullString(details), p.Error); err != nil {
			r.log.Error("page_result insert failed", "run_id", res.RunID, "page", p.Page, "err", err)
			return dbError(fmt.Sprintf("insert page %d", p.Page), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return dbError("commit", err)
	}
	r.log.Info("run stored", "run_id", res.RunID, "pages", len(res.Pages))
	return nil
}

func (r *runRepo) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, source, started_at, pages, matched, unresolved, failed, match_rate
		 FROM match_run ORDER BY started_at, id`)
	if err != nil {
		return nil, dbError("list runs", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.ID, &rs.Source, &rs.StartedAt, &rs.Summary.Pages, &rs.Summary.Matched,
			&rs.Summary.Unresolved, &rs.Summary.Failed, &rs.Summary.MatchRate); err != nil {
			return nil, dbError("scan run", err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (r *runRepo) PageResults(ctx context.Context, runID string) ([]entity.PageResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT page, status, identity_key, identifier, score, cluster, details, error
		 FROM page_result WHERE run_id = ? ORDER BY page`, runID)
	if err != nil {
		return nil, dbError("page results", err)
	}
	defer rows.Close()

	var out []entity.PageResult
	for rows.Next() {
		var (
			p       entity.PageResult
			status  string
			details sql.NullString
			errMsg  sql.NullString
		)
		if err := rows.Scan(&p.Page, &status, &p.IdentityKey, &p.MatchedIdentifier, &p.Score, &p.Cluster, &details, &errMsg); err != nil {
			return nil, dbError("scan page result", err)
		}
		p.Status = constants.MatchStatus(status)
		p.Error = errMsg.String
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &p.Details); err != nil {
				r.log.Warn("page_result details unreadable", "run_id", runID, "page", p.Page, "err", err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) a SQLite database with WAL and a busy timeout.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, dbError(fmt.Sprintf("mkdir %s", dir), err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, dbError(fmt.Sprintf("open sqlite %s", path), err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, dbError(pragma, err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, dbError(fmt.Sprintf("ping sqlite %s", path), err)
	}
	logger.Debug("sqlite opened", "path", path)
	return db, nil
}

// LoadRecords reads every row of table as a column-name keyed map in storage order.
// table must already be validated as a plain identifier.
func LoadRecords(ctx context.Context, db *sql.DB, table string) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, dbError(fmt.Sprintf("query %s", table), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, dbError(fmt.Sprintf("columns %s", table), err)
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, dbError(fmt.Sprintf("scan %s", table), err)
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			rec[c] = plainValue(vals[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(fmt.Sprintf("iterate %s", table), err)
	}
	return out, nil
}

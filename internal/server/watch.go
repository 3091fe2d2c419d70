package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docmatch/internal/export"
	"github.com/joseph-ayodele/docmatch/internal/ingest"
)

// Inbox resolves batch files as they appear in watched directories and writes a
// JSON report next to each one (or into OutDir).
type Inbox struct {
	Service *ResolverService
	Export  *export.Service
	OutDir  string
}

// Run blocks until ctx ends or the watcher fails to start.
func (b *Inbox) Run(ctx context.Context, cfg ingest.WatchConfig) error {
	if cfg.Logger == nil {
		cfg.Logger = b.Service.logger
	}
	events, errs, err := ingest.Watch(ctx, cfg)
	if err != nil {
		return err
	}
	logger := b.Service.logger
	logger.Info("inbox watching", "roots", strings.Join(cfg.Roots, ","))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if ok {
				logger.Warn("inbox watcher error", "error", err)
			}
		case path, ok := <-events:
			if !ok {
				return nil
			}
			if err := b.process(ctx, path); err != nil {
				logger.Error("inbox.process.failed", "path", path, "error", err)
			}
		}
	}
}

func (b *Inbox) process(ctx context.Context, path string) error {
	res, err := b.Service.driver.RunFile(ctx, path)
	if err != nil {
		return err
	}
	if err := b.Service.store(ctx, res); err != nil {
		b.Service.logger.Warn("run not stored", "run_id", res.RunID, "error", err)
	}

	dir := b.OutDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	out := filepath.Join(dir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".docmatch.json")
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := b.Export.WriteJSON(f, res); err != nil {
		return err
	}
	b.Service.logger.Info("inbox.process.ok", "path", path, "report", out, "run_id", res.RunID,
		"matched", res.Summary.Matched, "pages", res.Summary.Pages)
	return nil
}

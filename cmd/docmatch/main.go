package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joseph-ayodele/docmatch/internal/common"
	"github.com/joseph-ayodele/docmatch/internal/entity"
	"github.com/joseph-ayodele/docmatch/internal/export"
	"github.com/joseph-ayodele/docmatch/internal/ingest"
	"github.com/joseph-ayodele/docmatch/internal/pipeline"
	"github.com/joseph-ayodele/docmatch/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		configPath    = flag.String("config", "", "YAML configuration file (optional)")
		catalogPath   = flag.String("catalog", "", "reference catalog file (json, xlsx or sqlite)")
		catalogFormat = flag.String("catalog-format", "", "json | xlsx | sqlite | postgres (default from config)")
		catalogTable  = flag.String("catalog-table", "", "table holding the records for sqlite/postgres catalogs")
		input         = flag.String("input", "", "batch to resolve: PDF, image, image directory, .txt or .json pages")
		dir           = flag.String("dir", "", "directory of batches; every discovered file is resolved on its own")
		exts          = flag.String("ext", "pdf,txt,json", "extensions picked up by -dir")
		out           = flag.String("out", "", "JSON report path for -input (stdout if empty), report directory for -dir")
		xlsx          = flag.Bool("xlsx", false, "also write an XLSX workbook next to each JSON report")
		store         = flag.String("store", "", "SQLite file that keeps every run (optional)")
		minScore      = flag.Float64("min-score", -1, "override matching.min_score")
		workers       = flag.Int("workers", 0, "override pipeline.workers")
		visual        = flag.Bool("visual", false, "render pages and use visual signals for clustering")
	)
	flag.Parse()

	if (*input == "") == (*dir == "") {
		printError("Error: exactly one of --input or --dir is required\n")
		os.Exit(1)
	}

	// Reports may go to stdout, so logs go to stderr
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *catalogPath != "" {
		cfg.Catalog.Path = *catalogPath
	}
	if *catalogFormat != "" {
		cfg.Catalog.Format = *catalogFormat
	}
	if *catalogTable != "" {
		cfg.Catalog.Table = *catalogTable
	}
	if *minScore >= 0 {
		cfg.Matching.MinScore = *minScore
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *visual {
		cfg.Clustering.Visual = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := pipeline.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}

	var runs repository.RunRepository
	if *store != "" {
		db, err := repository.OpenSQLite(ctx, *store, logger)
		if err != nil {
			logger.Error("failed to open run store", "path", *store, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		runs = repository.NewRunRepository(db, logger)
		if err := runs.Migrate(ctx); err != nil {
			logger.Error("failed to migrate run store", "error", err)
			os.Exit(1)
		}
	}

	b := &batch{driver: driver, runs: runs, export: export.NewService(logger), xlsx: *xlsx, logger: logger}

	if *input != "" {
		res, err := b.resolve(ctx, *input, *out)
		if err != nil {
			logger.Error("batch failed", "input", *input, "error", err)
			os.Exit(1)
		}
		printSummary(res)
		return
	}

	sources, stats, err := ingest.Discover(*dir, strings.Split(*exts, ","), true)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("discovery complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	outDir := *out
	if outDir == "" {
		outDir = *dir
	}
	processed, failures := 0, 0
	for _, src := range ingest.Unique(sources) {
		report := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src.Path), filepath.Ext(src.Path))+".docmatch.json")
		res, err := b.resolve(ctx, src.Path, report)
		if err != nil {
			logger.Error("failed to resolve batch", "path", src.Path, "error", err)
			failures++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		processed++
		printSummary(res)
	}

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Batches found: %d\n", stats.Matched)
	fmt.Printf("- Duplicates skipped: %d\n", stats.Deduplicated)
	fmt.Printf("- Batches resolved: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	if failures > 0 {
		os.Exit(1)
	}
}

type batch struct {
	driver *pipeline.Driver
	runs   repository.RunRepository
	export *export.Service
	xlsx   bool
	logger *slog.Logger
}

// resolve runs one batch and writes its reports; an empty report path means stdout.
func (b *batch) resolve(ctx context.Context, path, report string) (*entity.BatchResult, error) {
	res, err := b.driver.RunFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if b.runs != nil {
		if err := b.runs.SaveRun(ctx, res); err != nil {
			b.logger.Warn("run not stored", "run_id", res.RunID, "error", err)
		}
	}

	var w io.Writer = os.Stdout
	if report != "" {
		if err := os.MkdirAll(filepath.Dir(report), 0o755); err != nil {
			return nil, err
		}
		f, err := os.Create(report)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		w = f
	}
	if err := b.export.WriteJSON(w, res); err != nil {
		return nil, err
	}

	if b.xlsx {
		base := report
		if base == "" {
			base = path
		}
		name := strings.TrimSuffix(base, filepath.Ext(base)) + ".xlsx"
		data, err := b.export.Workbook(res)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return nil, err
		}
		b.logger.Info("workbook written", "path", name)
	}
	return res, nil
}

func printSummary(res *entity.BatchResult) {
	s := res.Summary
	printError("%s: %d pages, %d matched, %d unresolved, %d failed (%.1f%%), %d documents\n",
		res.Source, s.Pages, s.Matched, s.Unresolved, s.Failed, s.MatchRate*100, len(res.Documents))
}

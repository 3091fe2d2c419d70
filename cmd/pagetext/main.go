package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/docmatch/internal/common"
	"github.com/joseph-ayodele/docmatch/internal/ocr"
)

// pagetext prints the pages of a batch as the JSON page list docmatch accepts with -input.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "YAML configuration file (optional)")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall extraction timeout")
	flag.Parse()
	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "pagetext [-config file] <pdf|image|dir>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	x := ocr.NewExtractor(ocr.FromConfig(cfg.OCR, cfg.Clustering.RenderDPI), nil, logger)
	start := time.Now()
	pages, err := x.Pages(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pages); err != nil {
		logger.Error("write pages", "error", err)
		os.Exit(1)
	}
	logger.Info("text extraction OK", "path", path, "pages", len(pages),
		"duration_ms", time.Since(start).Milliseconds())
}

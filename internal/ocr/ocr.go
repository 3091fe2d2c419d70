// Package ocr turns input files into per-page text with poppler and tesseract.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/docmatch/constants"
	"github.com/joseph-ayodele/docmatch/internal/common"
	"github.com/joseph-ayodele/docmatch/internal/entity"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Lang        string // tesseract languages, default "deu+eng"
	DPI         int    // OCR rasterization DPI, default 300
	RenderDPI   int    // DPI of page images rendered for visual signals, default 72
	TessdataDir string
	PSM         int // tesseract page segmentation mode; 0 keeps the default

	// Pages of a text PDF with fewer letters and digits than this are re-read by OCR.
	MinTextChars int
}

// FromConfig maps the application OCR settings.
func FromConfig(c common.OCRConfig, renderDPI int) Config {
	return Config{
		Pdftotext:    c.Pdftotext,
		Pdftoppm:     c.Pdftoppm,
		Tesseract:    c.Tesseract,
		Lang:         c.Lang,
		DPI:          c.DPI,
		RenderDPI:    renderDPI,
		TessdataDir:  c.TessdataDir,
		MinTextChars: c.MinTextChars,
	}
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// NewExtractor fills defaults and uses runner for external commands; a nil runner
// runs the real binaries.
func NewExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "deu+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = 72
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// Pages returns the 1-based pages of path. Directories yield one page per image,
// ordered by file name.
func (e *Extractor) Pages(ctx context.Context, path string) ([]entity.RawPage, error) {
	start := time.Now()
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var pages []entity.RawPage
	method := ""
	if info.IsDir() {
		method = "image-dir"
		pages, err = e.imageDir(ctx, path)
	} else {
		switch constants.MapExtToFormat(filepath.Ext(path)) {
		case constants.PDF:
			method = "pdf"
			pages, err = e.pdfPages(ctx, path)
		case constants.IMAGE:
			method = "image-ocr"
			var txt string
			txt, err = e.tesseract(ctx, path)
			pages = []entity.RawPage{{Index: 1, Text: txt, ImagePath: path}}
		case constants.TXT:
			method = "txt"
			pages, err = textPages(path)
		case constants.JSON:
			method = "json"
			pages, err = jsonPages(path)
		default:
			err = fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, filepath.Ext(path))
		}
	}
	if err != nil {
		e.logger.Error("ocr.pages.failed", "path", path, "method", method, "error", err)
		return nil, err
	}
	e.logger.Info("ocr.pages.ok", "path", path, "method", method, "pages", len(pages),
		"elapsed_ms", time.Since(start).Milliseconds())
	return pages, nil
}

func (e *Extractor) imageDir(ctx context.Context, dir string) ([]entity.RawPage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range entries {
		if !de.IsDir() && constants.IsImageExt(filepath.Ext(de.Name())) {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)

	pages := make([]entity.RawPage, 0, len(names))
	for i, name := range names {
		p := filepath.Join(dir, name)
		txt, err := e.tesseract(ctx, p)
		if err != nil {
			// an unreadable page stays in the batch with empty text
			e.logger.Warn("ocr.page.failed", "path", p, "error", err)
		}
		pages = append(pages, entity.RawPage{Index: i + 1, Text: txt, ImagePath: p})
	}
	return pages, nil
}

func (e *Extractor) tesseract(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <lang>
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return CleanText(string(out)), nil
}

// textPages reads a plain text file whose pages are separated by form feeds.
func textPages(path string) ([]entity.RawPage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitPages(string(b)), nil
}

// SplitPages splits form-feed separated text into 1-based pages. A trailing form feed
// does not open an extra page.
func SplitPages(text string) []entity.RawPage {
	text = strings.TrimSuffix(text, "\f")
	parts := strings.Split(text, "\f")
	pages := make([]entity.RawPage, len(parts))
	for i, p := range parts {
		pages[i] = entity.RawPage{Index: i + 1, Text: CleanText(p)}
	}
	return pages
}

// jsonPages reads [{"index": 1, "text": "..."}]; pages without an index take their position.
func jsonPages(path string) ([]entity.RawPage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pages []entity.RawPage
	if err := json.Unmarshal(b, &pages); err != nil {
		return nil, fmt.Errorf("decode pages %s: %w", path, err)
	}
	for i := range pages {
		if pages[i].Index <= 0 {
			pages[i].Index = i + 1
		}
	}
	return pages, nil
}

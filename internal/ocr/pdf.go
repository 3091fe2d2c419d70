package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/joseph-ayodele/docmatch/internal/entity"
)

// pdfPages reads the text layer and OCRs the pages that have none.
func (e *Extractor) pdfPages(ctx context.Context, path string) ([]entity.RawPage, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		e.logger.Warn("pdftotext failed, rendering every page", "path", path, "stderr", truncate(string(errb), 1<<10))
		return e.pdfOCR(ctx, path)
	}

	pages := SplitPages(string(out))
	for i := range pages {
		if !needsOCR(pages[i].Text, e.cfg.MinTextChars) {
			continue
		}
		txt, err := e.ocrPage(ctx, path, pages[i].Index)
		if err != nil {
			e.logger.Warn("ocr.page.failed", "path", path, "page", pages[i].Index, "error", err)
			continue
		}
		pages[i].Text = txt
	}
	return pages, nil
}

// ocrPage renders page n alone and runs tesseract on it.
func (e *Extractor) ocrPage(ctx context.Context, path string, n int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "docmatch-pp-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	num := strconv.Itoa(n)
	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png -f n -l n <in.pdf> <tmp/page>
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", "-f", num, "-l", num, path, prefix); err != nil {
		return "", fmt.Errorf("pdftoppm page %d: %w: %s", n, err, truncate(string(errb), 1<<10))
	}
	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm rendered nothing for page %d", n)
	}
	return e.tesseract(ctx, matches[0])
}

// pdfOCR renders every page and OCRs each; used when the PDF has no readable text layer.
func (e *Extractor) pdfOCR(ctx context.Context, path string) ([]entity.RawPage, error) {
	tmpDir, err := os.MkdirTemp("", "docmatch-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	images, err := e.render(ctx, path, tmpDir, e.cfg.DPI)
	if err != nil {
		return nil, err
	}
	pages := make([]entity.RawPage, len(images))
	for i, img := range images {
		txt, err := e.tesseract(ctx, img)
		if err != nil {
			e.logger.Warn("ocr.page.failed", "path", path, "page", i+1, "error", err)
		}
		pages[i] = entity.RawPage{Index: i + 1, Text: txt}
	}
	return pages, nil
}

// Render rasterizes every page of the PDF at path into dir at RenderDPI and returns
// the image paths in page order.
func (e *Extractor) Render(ctx context.Context, path, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return e.render(ctx, path, dir, e.cfg.RenderDPI)
}

func (e *Extractor) render(ctx context.Context, path, dir string, dpi int) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <dir/page>
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(dpi), "-png", path, prefix); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 1<<10))
	}
	// pdftoppm zero-pads page numbers to a common width, so lexical order is page order
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	return matches, nil
}

// AttachImages sets ImagePath of each page from the rendered images, by position.
func AttachImages(pages []entity.RawPage, images []string) {
	for i := range pages {
		if i < len(images) && pages[i].ImagePath == "" {
			pages[i].ImagePath = images[i]
		}
	}
}

// Package export renders batch results as JSON and XLSX reports.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docmatch/internal/entity"
)

const (
	SheetPages     = "Pages"
	SheetDocuments = "Documents"
	SheetSummary   = "Summary"
)

// Service produces report bytes for a batch result.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// WriteJSON writes res as indented JSON.
func (s *Service) WriteJSON(w io.Writer, res *entity.BatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("json write: %w", err)
	}
	return nil
}

// Workbook returns an XLSX workbook (as bytes) with one sheet per view of res.
func (s *Service) Workbook(res *entity.BatchResult) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// excelize starts with "Sheet1"; rename it so no empty sheet is left behind
	if err := f.SetSheetName("Sheet1", SheetPages); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetDocuments, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	idx, _ := f.GetSheetIndex(SheetPages)
	f.SetActiveSheet(idx)

	if err := writePages(f, res.Pages); err != nil {
		return nil, err
	}
	if err := writeDocuments(f, res); err != nil {
		return nil, err
	}
	if err := writeSummary(f, res); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"run_id", res.RunID,
		"pages", len(res.Pages),
		"documents", len(res.Documents),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writePages(f *excelize.File, pages []entity.PageResult) error {
	if err := writeRow(f, SheetPages, 1, "Page", "Status", "Identity Key", "Matched Identifier",
		"Score", "Rule", "Document", "Details", "Error"); err != nil {
		return err
	}
	for i, p := range pages {
		notes := make([]string, 0, len(p.Details))
		for _, d := range p.Details {
			if d.Points > 0 {
				notes = append(notes, fmt.Sprintf("%s: %s (%.2f)", d.Field, d.Note, d.Points))
			}
		}
		var score any
		if p.Matched() {
			score = p.Score
		}
		if err := writeRow(f, SheetPages, i+2, p.Page, string(p.Status), p.IdentityKey, p.MatchedIdentifier,
			score, p.Rule, p.Cluster, truncate(strings.Join(notes, "; "), 1000), p.Error); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetPages, "A", "B", 12)
	_ = f.SetColWidth(SheetPages, "C", "D", 22)
	_ = f.SetColWidth(SheetPages, "H", "H", 80)
	return nil
}

func writeDocuments(f *excelize.File, res *entity.BatchResult) error {
	if err := writeRow(f, SheetDocuments, 1, "Document", "Identity Key", "Pages", "First Page", "Page Count"); err != nil {
		return err
	}
	for i, d := range res.Documents {
		pages := make([]string, len(d.Pages))
		for k, p := range d.Pages {
			pages[k] = fmt.Sprint(p)
		}
		first := 0
		if len(d.Pages) > 0 {
			first = d.Pages[0]
		}
		if err := writeRow(f, SheetDocuments, i+2, d.Cluster, d.IdentityKey, strings.Join(pages, ", "), first, len(d.Pages)); err != nil {
			return err
		}
	}

	// document starts sit beside the clusters: where the identity changes in page order
	col := 7
	header, _ := excelize.CoordinatesToCellName(col, 1)
	if err := f.SetSheetRow(SheetDocuments, header, &[]any{"Start Page", "Start Identity Key", "Key", "Year"}); err != nil {
		return err
	}
	for i, s := range res.Starts {
		cell, _ := excelize.CoordinatesToCellName(col, i+2)
		if err := f.SetSheetRow(SheetDocuments, cell, &[]any{s.Page, s.IdentityKey, s.Key, s.Year}); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetDocuments, "B", "C", 24)
	_ = f.SetColWidth(SheetDocuments, "H", "H", 24)
	return nil
}

func writeSummary(f *excelize.File, res *entity.BatchResult) error {
	s := res.Summary
	rows := [][]any{
		{"Run ID", res.RunID},
		{"Source", res.Source},
		{"Started At", res.StartedAt.Format(time.RFC3339)},
		{"Elapsed (ms)", res.ElapsedMS},
		{"Pages", s.Pages},
		{"Matched", s.Matched},
		{"Unresolved", s.Unresolved},
		{"Failed", s.Failed},
		{"Match Rate", s.MatchRate},
		{"Documents", len(res.Documents)},
	}
	for i, r := range rows {
		if err := writeRow(f, SheetSummary, i+1, r...); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 16)
	_ = f.SetColWidth(SheetSummary, "B", "B", 40)
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

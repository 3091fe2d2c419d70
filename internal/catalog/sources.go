package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docmatch/internal/common"
	"github.com/joseph-ayodele/docmatch/internal/repository"
)

// Source formats.
const (
	FormatJSON     = "json"
	FormatXLSX     = "xlsx"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

// Source says where the reference records live.
type Source struct {
	Format string
	Path   string // json, xlsx and sqlite
	Sheet  string // xlsx; empty means the first sheet
	Table  string // sqlite and postgres
	DB     repository.Config
}

// Open loads the rows of src and builds a Catalog from them.
func Open(ctx context.Context, src Source, schema Schema, dates DateParser, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	rows, err := Load(ctx, src, schema, logger)
	if err != nil {
		logger.Error("catalog.load.failed", "format", src.Format, "path", src.Path, "table", src.Table, "error", err)
		return nil, common.NewAppError("CATALOG_ERROR", fmt.Sprintf("load %s catalog", src.Format), fmt.Errorf("%w: %v", common.ErrCatalog, err))
	}
	logger.Info("catalog.load.ok", "format", src.Format, "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())
	return Build(rows, schema, dates, logger)
}

// Load reads the raw rows of src in source order.
func Load(ctx context.Context, src Source, schema Schema, logger *slog.Logger) ([]map[string]any, error) {
	switch src.Format {
	case FormatJSON, "":
		return LoadJSON(src.Path)
	case FormatXLSX:
		return LoadXLSX(src.Path, src.Sheet, schema.DateField)
	case FormatSQLite:
		if err := validTable(src.Table); err != nil {
			return nil, err
		}
		db, err := repository.OpenSQLite(ctx, src.Path, logger)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return repository.LoadRecords(ctx, db, src.Table)
	case FormatPostgres:
		if err := validTable(src.Table); err != nil {
			return nil, err
		}
		pool, err := repository.Open(ctx, src.DB, logger)
		if err != nil {
			return nil, err
		}
		defer repository.Close(pool, logger)
		return repository.LoadRecordsPG(ctx, pool, src.Table)
	default:
		return nil, fmt.Errorf("%w: catalog format %q", common.ErrUnsupportedFormat, src.Format)
	}
}

func validTable(table string) error {
	v := common.NewValidator().Field("table", table, common.Required, common.SQLIdentifier)
	return v.Error()
}

// recordsSchema accepts an array of flat objects with scalar values.
func recordsSchema() map[string]any {
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "array",
		"items": map[string]any{
			"type": "object",
			"additionalProperties": map[string]any{
				"type": []any{"string", "number", "boolean", "null"},
			},
		},
	}
}

var (
	recordsOnce     sync.Once
	compiledRecords *jsonschema.Schema
	recordsErr      error
)

func recordsValidator() (*jsonschema.Schema, error) {
	recordsOnce.Do(func() {
		b, err := json.Marshal(recordsSchema())
		if err != nil {
			recordsErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("records.json", bytes.NewReader(b)); err != nil {
			recordsErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledRecords, recordsErr = compiler.Compile("records.json")
	})
	return compiledRecords, recordsErr
}

// LoadJSON reads a JSON array of records. Numbers keep their literal text so
// identifiers such as 4500001234 are not rounded through float64.
func LoadJSON(path string) ([]map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return DecodeJSON(b)
}

// DecodeJSON validates and decodes a JSON array of records.
func DecodeJSON(b []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	schema, err := recordsValidator()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("records do not match schema: %w", err)
	}

	items, _ := doc.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		obj, _ := it.(map[string]any)
		out = append(out, obj)
	}
	return out, nil
}

// LoadXLSX reads sheet (the first sheet when empty) with the first row as header.
// Cells are read raw so numbers are not locale-formatted; dateField cells holding
// an Excel serial are converted to time.Time.
func LoadXLSX(path, sheet, dateField string) ([]map[string]any, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	out := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]any, len(header))
		for j, h := range header {
			h = strings.TrimSpace(h)
			if h == "" || j >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[j])
			if cell == "" {
				continue
			}
			if h == dateField {
				if serial, err := strconv.ParseFloat(cell, 64); err == nil {
					if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
						rec[h] = t
						continue
					}
				}
			}
			rec[h] = cell
		}
		if len(rec) > 0 {
			out = append(out, rec)
		}
	}
	return out, nil
}

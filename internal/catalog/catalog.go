// Package catalog loads reference records (ERP line items) and prepares them for matching.
package catalog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docmatch/constants"
	"github.com/joseph-ayodele/docmatch/internal/common"
	"github.com/joseph-ayodele/docmatch/internal/textnorm"
)

// Schema names the columns that carry identity and need special normalization.
type Schema struct {
	IdentifierField string // required; records without it are skipped
	KeyField        string // primary numeric key, e.g. MBLNR
	YearField       string // e.g. MJAHR; derived from DateField when absent
	DateField       string
	StreetField     string
	CountryField    string
}

// DateParser turns a raw date value into YYYY-MM-DD.
type DateParser interface {
	CanonicalDate(raw string) (string, bool)
}

// Record is one immutable reference record.
type Record struct {
	Position    int // 0-based position in the source
	Identifier  string
	Key         string
	Year        string
	IdentityKey string
	Date        string // YYYY-MM-DD or empty
	Fields      map[string]any
	Normalized  map[string]string
}

// Skipped describes a source row excluded at load time.
type Skipped struct {
	Position int
	Reason   string
}

// Catalog is the ordered set of usable records for one run.
type Catalog struct {
	Schema  Schema
	Records []*Record
	Skipped []Skipped

	byKey map[string]*Record
}

// Len returns the number of usable records.
func (c *Catalog) Len() int {
	return len(c.Records)
}

// Lookup returns the first record with the given identity key.
func (c *Catalog) Lookup(identityKey string) (*Record, bool) {
	r, ok := c.byKey[identityKey]
	return r, ok
}

// Build normalizes rows into a Catalog, keeping source order. Rows missing the identifier
// are skipped and logged. It fails only when no usable record remains.
func Build(rows []map[string]any, schema Schema, dates DateParser, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if schema.IdentifierField == "" {
		return nil, common.NewAppError("CATALOG_ERROR", "identifier field not configured", common.ErrCatalog)
	}
	if len(rows) == 0 {
		return nil, common.NewAppError("CATALOG_ERROR", "catalog has no records", common.ErrCatalog)
	}

	c := &Catalog{Schema: schema, byKey: make(map[string]*Record, len(rows))}
	for i, row := range rows {
		rec, reason := buildRecord(i, row, schema, dates)
		if rec == nil {
			c.Skipped = append(c.Skipped, Skipped{Position: i, Reason: reason})
			logger.Warn("catalog.record.skipped", "position", i, "reason", reason)
			continue
		}
		c.Records = append(c.Records, rec)
		if _, dup := c.byKey[rec.IdentityKey]; !dup {
			c.byKey[rec.IdentityKey] = rec
		}
	}
	if len(c.Records) == 0 {
		return nil, common.NewAppError("CATALOG_ERROR",
			fmt.Sprintf("none of %d records carries %q", len(rows), schema.IdentifierField), common.ErrCatalog)
	}
	logger.Info("catalog.built", "records", len(c.Records), "skipped", len(c.Skipped))
	return c, nil
}

func buildRecord(pos int, row map[string]any, schema Schema, dates DateParser) (*Record, string) {
	id := textnorm.Normalize(row[schema.IdentifierField])
	v := common.NewValidator().Field(schema.IdentifierField, id, common.Required)
	if v.HasErrors() {
		return nil, v.ErrorMessage()
	}

	rec := &Record{
		Position:   pos,
		Identifier: id,
		Fields:     row,
		Normalized: make(map[string]string, len(row)),
	}
	for name, raw := range row {
		n := textnorm.Normalize(raw)
		switch name {
		case schema.StreetField:
			n = constants.CanonicalStreet(n)
		case schema.CountryField:
			if code, ok := constants.CanonicalCountry(n); ok {
				n = code
			}
		}
		if n != "" {
			rec.Normalized[name] = n
		}
	}

	if schema.DateField != "" {
		if iso, ok := recordDate(row[schema.DateField], dates); ok {
			rec.Date = iso
			rec.Normalized[schema.DateField] = iso
		}
	}
	if schema.KeyField != "" {
		rec.Key = textnorm.Normalize(row[schema.KeyField])
	}
	if schema.YearField != "" {
		rec.Year = textnorm.Normalize(row[schema.YearField])
	}
	if rec.Year == "" && len(rec.Date) >= 4 {
		rec.Year = rec.Date[:4]
	}
	rec.IdentityKey = identityKey(rec)
	return rec, ""
}

func recordDate(raw any, dates DateParser) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case time.Time:
		return v.Format("2006-01-02"), true
	default:
		if dates == nil {
			return "", false
		}
		return dates.CanonicalDate(fmt.Sprint(v))
	}
}

// identityKey is {key}_{year}; records without a key column fall back to the identifier.
func identityKey(r *Record) string {
	switch {
	case r.Key != "" && r.Year != "":
		return r.Key + "_" + r.Year
	case r.Key != "":
		return r.Key
	default:
		return r.Identifier
	}
}

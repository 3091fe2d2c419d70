package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/docmatch/constants"
	"github.com/joseph-ayodele/docmatch/internal/common"
	"github.com/joseph-ayodele/docmatch/internal/entity"
)

func TestLoadRecords(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "ref.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE goods_receipt ("Delivery Note Number" TEXT, MBLNR INTEGER, MJAHR INTEGER, "Vendor - Name 1" TEXT, amount BLOB);
		INSERT INTO goods_receipt VALUES ('4711234', 4500001234, 2023, 'ACME GmbH', x'6869');
		INSERT INTO goods_receipt VALUES (NULL, 4500001235, 2023, 'Other', NULL);`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	recs, err := LoadRecords(ctx, db, "goods_receipt")
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	first := recs[0]
	if first["Delivery Note Number"] != "4711234" {
		t.Errorf("identifier = %#v", first["Delivery Note Number"])
	}
	if first["MBLNR"] != int64(4500001234) {
		t.Errorf("MBLNR = %#v", first["MBLNR"])
	}
	if first["amount"] != "hi" {
		t.Errorf("blob not converted to string: %#v", first["amount"])
	}
	if recs[1]["Delivery Note Number"] != nil {
		t.Errorf("NULL should stay nil, got %#v", recs[1]["Delivery Note Number"])
	}

	if _, err := LoadRecords(ctx, db, "missing_table"); err == nil {
		t.Error("expected error for missing table")
	}
}

func TestRunRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "runs", "store.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	repo := NewRunRepository(db, nil)
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate twice: %v", err)
	}

	res := &entity.BatchResult{
		RunID:     "run-1",
		Source:    "batch.pdf",
		StartedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ElapsedMS: 12,
		Pages: []entity.PageResult{
			{Page: 1, Status: constants.StatusMatched, IdentityKey: "4500001234_2023", MatchedIdentifier: "4711234", Score: 14.2, Cluster: 1,
				Details: []entity.FieldDetail{{Field: "Delivery Note Number", Kind: "exact", Points: 10}}},
			{Page: 2, Status: constants.StatusUnresolved, IdentityKey: constants.NoneFound, Cluster: 2},
		},
		Summary: entity.Summary{Pages: 2, Matched: 1, Unresolved: 1, MatchRate: 0.5},
	}
	if err := repo.SaveRun(ctx, res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := repo.SaveRun(ctx, res); !errors.Is(err, common.ErrDatabase) {
		t.Errorf("duplicate run id: err = %v, want a database error", err)
	}

	runs, err := repo.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" || runs[0].Summary.Matched != 1 || runs[0].Summary.MatchRate != 0.5 {
		t.Errorf("runs = %+v", runs)
	}

	pages, err := repo.PageResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("PageResults: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	if !pages[0].Matched() || pages[0].Details[0].Points != 10 {
		t.Errorf("page 1 = %+v", pages[0])
	}
	if pages[1].Status != constants.StatusUnresolved || pages[1].IdentityKey != constants.NoneFound {
		t.Errorf("page 2 = %+v", pages[1])
	}
}

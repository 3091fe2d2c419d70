package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.pdf"), "batch one")
	write(t, filepath.Join(root, "b.PNG"), "scan")
	write(t, filepath.Join(root, "sub", "copy.pdf"), "batch one")
	write(t, filepath.Join(root, "notes.md"), "ignored")
	write(t, filepath.Join(root, ".hidden", "c.pdf"), "hidden")

	sources, stats, err := Discover(root, nil, true)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if stats.Matched != 3 || stats.Succeeded != 3 || stats.Deduplicated != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(sources) != 3 {
		t.Fatalf("sources = %+v", sources)
	}
	dup := sources[2]
	if filepath.Base(dup.Path) != "copy.pdf" || !dup.Deduplicated || dup.DuplicateOf != filepath.Join(root, "a.pdf") {
		t.Errorf("duplicate = %+v", dup)
	}
	if got := Unique(sources); len(got) != 2 {
		t.Errorf("Unique = %+v", got)
	}

	sources, _, err = Discover(root, []string{".PDF"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 3 {
		t.Errorf("with hidden and pdf filter got %d sources, want 3", len(sources))
	}

	if _, _, err := Discover("  ", nil, true); err == nil {
		t.Error("empty root should fail")
	}
}

func TestWatchInitialScanAndNewFiles(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "old.pdf"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watch event")
			return ""
		}
	}
	if got := next(); filepath.Base(got) != "old.pdf" {
		t.Fatalf("initial event = %q", got)
	}

	write(t, filepath.Join(root, "new.pdf"), "y")
	if got := next(); filepath.Base(got) != "new.pdf" {
		t.Errorf("event = %q, want new.pdf", got)
	}

	cancel()
	for range events {
	}
}

// Package ingest finds scanned batches on disk.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/docmatch/constants"
)

// Source is one input file picked up by discovery.
type Source struct {
	Path         string
	Ext          string
	HashHex      string
	Size         int64
	Deduplicated bool   // same content as an earlier source
	DuplicateOf  string // path of that earlier source
	Err          string
}

// Stats summarizes a directory walk.
type Stats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Discover walks root, filters by exts (or constants.AllowedExtensions), skips hidden
// entries if requested and hashes every match. Per-file failures are recorded in the
// result and do not stop the walk. Sources are returned in path order.
func Discover(root string, exts []string, skipHidden bool) ([]Source, Stats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, Stats{}, errors.New("root path is required")
	}
	allowed := extSet(exts)

	var (
		results []Source
		stats   Stats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Source{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := allowed[ext]; !ok {
			return nil
		}
		stats.Matched++

		src, err := hashFile(path)
		if err != nil {
			results = append(results, Source{Path: path, Ext: ext, Err: err.Error()})
			stats.Failed++
			return nil
		}
		src.Ext = ext
		results = append(results, src)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	// WalkDir is lexical already; sort keeps the contract explicit for callers that merge roots.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Path < results[j].Path })

	first := make(map[string]string)
	for i := range results {
		s := &results[i]
		if s.Err != "" {
			continue
		}
		stats.Succeeded++
		if prev, ok := first[s.HashHex]; ok {
			s.Deduplicated = true
			s.DuplicateOf = prev
			stats.Deduplicated++
			continue
		}
		first[s.HashHex] = s.Path
	}
	return results, stats, nil
}

// Unique returns the readable, non-duplicate sources.
func Unique(sources []Source) []Source {
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s.Err == "" && !s.Deduplicated {
			out = append(out, s)
		}
	}
	return out
}

func hashFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Source{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return Source{Path: path, HashHex: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

func extSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return constants.AllowedExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if e = constants.NormalizeExt(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// Allowed reports whether path has one of the extensions in exts (or the defaults).
func Allowed(path string, exts []string) bool {
	_, ok := extSet(exts)[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

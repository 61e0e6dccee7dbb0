// Package store persists evaluation results: a JSON result file that makes
// long batch runs resumable by case id, plus an optional Postgres archive.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mazai-xiangji/TCMD-Bench/pkg"
)

// ResultFile is the run's append-only result log. The whole list is
// rewritten after every case so a crash at any point leaves a valid file.
type ResultFile struct {
	path    string
	results []pkg.Result
	done    map[string]bool
}

// OpenResults loads a prior result file if one exists. A missing file or a
// file that does not hold a JSON list starts a fresh run; a prior run's
// results are never thrown away silently on a decode error.
func OpenResults(path string) (*ResultFile, error) {
	f := &ResultFile{path: path, done: make(map[string]bool)}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}

	var results []pkg.Result
	if err := json.Unmarshal(b, &results); err != nil {
		log.Printf("store: %s exists but is not a result list (%v), starting fresh", path, err)
		return f, nil
	}
	f.results = results
	for _, r := range results {
		if r.CaseID != "" {
			f.done[r.CaseID] = true
		}
	}
	return f, nil
}

// Has reports whether a case id already appears in the loaded results.
func (f *ResultFile) Has(caseID string) bool { return f.done[caseID] }

// Len returns the number of results currently held.
func (f *ResultFile) Len() int { return len(f.results) }

// Append records one result and rewrites the file. The write goes through a
// uniquely named temp file and a rename, so a concurrent reader (or a crash
// mid-write) never sees a half-written result list.
func (f *ResultFile) Append(res pkg.Result) error {
	f.results = append(f.results, res)
	if res.CaseID != "" {
		f.done[res.CaseID] = true
	}
	return f.save()
}

func (f *ResultFile) save() error {
	if dir := filepath.Dir(f.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: create %s: %w", dir, err)
		}
	}
	b, err := json.MarshalIndent(f.results, "", "    ")
	if err != nil {
		return fmt.Errorf("store: encode results: %w", err)
	}
	tmp := fmt.Sprintf("%s.tmp-%s", f.path, uuid.NewString())
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: replace %s: %w", f.path, err)
	}
	return nil
}

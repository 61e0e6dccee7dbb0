package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mazai-xiangji/TCMD-Bench/pkg"
)

// LoadCases reads the structured case file. Unlike the result file, a
// malformed case file aborts the run: there is nothing sensible to do with
// an input set that cannot be decoded as a list of cases.
func LoadCases(path string) ([]pkg.Case, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read case file %s: %w", path, err)
	}
	var cases []pkg.Case
	if err := json.Unmarshal(b, &cases); err != nil {
		return nil, fmt.Errorf("store: case file %s is not a JSON list of cases: %w", path, err)
	}
	return cases, nil
}

// Package artifact verifies the files a task consumes and produces.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Match is one file satisfying a declared glob.
type Match struct {
	Pattern string
	Path    string
	Size    int64
}

// globFn is a seam for tests.
var globFn = func(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern)
}

// CheckConsumes verifies every consumed glob matches at least one file
// before a task starts. The error names the first missing pattern so
// the failure report points at the gap in the chain.
func CheckConsumes(dir string, patterns []string) error {
	for _, pattern := range patterns {
		matches, err := expand(dir, pattern)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("required input %q matched no files", pattern)
		}
	}
	return nil
}

// CheckProduces verifies every produced glob matches after a task
// succeeds and returns what was found for logging.
func CheckProduces(dir string, patterns []string) ([]Match, error) {
	var all []Match
	for _, pattern := range patterns {
		matches, err := expand(dir, pattern)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("declared output %q matched no files", pattern)
		}
		all = append(all, matches...)
	}
	return all, nil
}

func expand(dir, pattern string) ([]Match, error) {
	full := pattern
	if !filepath.IsAbs(pattern) {
		full = filepath.Join(dir, pattern)
	}

	paths, err := globFn(full)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	matches := make([]Match, 0, len(paths))
	for _, p := range paths {
		m := Match{Pattern: pattern, Path: p}
		if info, err := os.Stat(p); err == nil {
			m.Size = info.Size()
		}
		matches = append(matches, m)
	}
	return matches, nil
}

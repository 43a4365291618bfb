// Package watch re-runs targets when watched files change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/romdo/go-debounce"

	"runbook/internal/runbook"
)

const (
	// quietPeriod is how long the file system must stay still before a
	// re-run triggers.
	quietPeriod = 500 * time.Millisecond
	// maxWait caps how long a steady stream of events can defer the
	// re-run.
	maxWait = 2 * time.Second
)

// Watcher triggers a callback when files matching the plan's watch
// globs change.
type Watcher struct {
	dirs    []string
	matches func(path string) bool
}

// New collects the watch globs declared by the given tasks. It errors
// when no task in the plan declares any, since watching nothing would
// just hang.
func New(file *runbook.File, expander *runbook.Expander, tasks []string) (*Watcher, error) {
	var patterns []string
	for _, name := range tasks {
		task := file.Tasks[name]
		for _, pattern := range task.Watch {
			expanded, err := expander.ExpandString(pattern)
			if err != nil {
				return nil, fmt.Errorf("task %s: watch pattern: %w", name, err)
			}
			if !filepath.IsAbs(expanded) {
				expanded = filepath.Join(file.Workspace(), expanded)
			}
			patterns = append(patterns, expanded)
		}
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no task in the plan declares watch patterns")
	}

	dirs, err := watchDirs(patterns)
	if err != nil {
		return nil, err
	}

	return &Watcher{
		dirs: dirs,
		matches: func(path string) bool {
			for _, pattern := range patterns {
				if ok, err := doublestar.Match(pattern, path); err == nil && ok {
					return true
				}
			}
			return false
		},
	}, nil
}

// watchDirs maps glob patterns to the directories fsnotify should
// observe: the static prefix of each pattern plus the parents of
// current matches.
func watchDirs(patterns []string) ([]string, error) {
	set := make(map[string]struct{})
	for _, pattern := range patterns {
		base, _ := doublestar.SplitPattern(pattern)
		if info, err := os.Stat(base); err == nil && info.IsDir() {
			set[base] = struct{}{}
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			set[filepath.Dir(m)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("watch patterns match no existing directories")
	}

	dirs := make([]string, 0, len(set))
	for dir := range set {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Dirs returns the directories under observation.
func (w *Watcher) Dirs() []string { return w.dirs }

// Run blocks, invoking onChange after each debounced burst of matching
// file events, until ctx is canceled.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	debounced, cancel := debounce.NewWithMaxWait(quietPeriod, maxWait, onChange)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if w.matches(event.Name) {
				debounced()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				return fmt.Errorf("file watcher: %w", err)
			}
		}
	}
}

package runbook

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// DefaultFileNames are probed, in order, by Locate.
var DefaultFileNames = []string{"runbook.yaml", "runbook.yml", "runbook.json"}

// Load reads and validates a task file. Unknown keys are rejected so a
// typo fails at load time instead of silently changing run behavior.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve task file path: %w", err)
	}

	file, err := decode(abs, data)
	if err != nil {
		return nil, err
	}
	file.Path = abs

	applyDefaults(file)
	if err := Validate(file); err != nil {
		return nil, err
	}
	return file, nil
}

func decode(path string, data []byte) (*File, error) {
	var file File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	default:
		return nil, fmt.Errorf("unsupported task file extension %q (want .yaml, .yml or .json)", filepath.Ext(path))
	}
	return &file, nil
}

func applyDefaults(f *File) {
	for _, task := range f.Tasks {
		if task == nil {
			continue
		}
		if task.Order == "" {
			task.Order = OrderSequence
		}
	}
	for i := range f.Inputs {
		in := &f.Inputs[i]
		if in.Type == "" {
			in.Type = in.EffectiveType()
		}
	}
}

// Locate walks up from dir looking for a task file. It returns the
// first match; the containing directory is the workspace root.
func Locate(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve start directory: %w", err)
	}

	for {
		for _, name := range DefaultFileNames {
			candidate := filepath.Join(abs, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no runbook file found in %s or any parent directory", dir)
		}
		abs = parent
	}
}

// Workspace returns the workspace root for a loaded file.
func (f *File) Workspace() string {
	return filepath.Dir(f.Path)
}

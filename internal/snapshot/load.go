package snapshot

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/awareness/internal/world"
)

// LoadFile reads a snapshot from a YAML or JSON file.
// Unknown top-level keys are rejected so typos surface early; the content
// of individual fields is not checked here (see detect.FieldWarning).
func LoadFile(path string) (*world.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a snapshot document. JSON is accepted as a YAML subset.
func Parse(data []byte) (*world.Snapshot, error) {
	var s world.Snapshot
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if s.Version < 0 {
		return nil, fmt.Errorf("parse snapshot: negative version %d", s.Version)
	}
	return &s, nil
}

// LoadDir loads every *.yaml, *.yml and *.json file in dir, ordered by
// version. Duplicate versions are an error.
func LoadDir(dir string) ([]*world.Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var out []*world.Snapshot
	for _, e := range entries {
		if e.IsDir() || !isSnapshotFile(e.Name()) {
			continue
		}
		s, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("duplicate snapshot version %d in %s", out[i].Version, dir)
		}
	}
	return out, nil
}

func isSnapshotFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

package allocate

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk subsystem list.
type Catalog struct {
	Subsystems []Subsystem `yaml:"subsystems"`
}

// LoadCatalog reads subsystems from a YAML file. An empty path or a missing
// file yields an empty list.
func LoadCatalog(path string) ([]Subsystem, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read subsystem catalog: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse subsystem catalog: %w", err)
	}

	out := cat.Subsystems[:0]
	for _, s := range cat.Subsystems {
		if s.Name != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// SaveCatalog writes subsystems to path via a temp file and rename.
func SaveCatalog(path string, subs []Subsystem) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	data, err := yaml.Marshal(Catalog{Subsystems: subs})
	if err != nil {
		return fmt.Errorf("failed to marshal subsystem catalog: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".subsystems-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write subsystem catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write subsystem catalog: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace subsystem catalog: %w", err)
	}
	return nil
}

// AddSubsystem appends s unless a subsystem with the same name (ignoring
// case) exists. Reports whether it was added.
func AddSubsystem(subs []Subsystem, s Subsystem) ([]Subsystem, bool) {
	if _, ok := Find(subs, s.Name); ok {
		return subs, false
	}
	return append(subs, s), true
}

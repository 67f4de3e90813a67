// Package manifest implements §6 lockfile and import-map I/O: identical
// `{"imports": {...}}` JSON shapes, written atomically via temp-file +
// rename so a crash mid-write never leaves a torn file behind.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest is the shared lockfile/import-map shape.
type Manifest struct {
	Imports map[string]string `json:"imports"`
}

// New builds a Manifest from a specifier->URL map.
func New(imports map[string]string) Manifest {
	if imports == nil {
		imports = map[string]string{}
	}
	return Manifest{Imports: imports}
}

// Load reads and parses a manifest file. A missing file returns the
// os.ReadFile error unchanged, so callers can tell it apart with
// os.IsNotExist and treat it as an empty manifest if they choose.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}

// Write serializes m as UTF-8 JSON and writes it to path atomically: the
// content is first written to a temp file in the same directory, then
// renamed into place, so readers never observe a partial write.
func Write(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating manifest dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp manifest file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp manifest file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp manifest file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming manifest into place: %w", err)
	}
	return nil
}

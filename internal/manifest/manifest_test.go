package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import-map.json")
	m := New(map[string]string{"react": "/web_modules/react.js"})

	if err := Write(path, m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Imports["react"] != "/web_modules/react.js" {
		t.Errorf("Imports[react] = %q, want /web_modules/react.js", got.Imports["react"])
	}
}

func TestWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "import-map.json")
	if err := Write(path, New(nil)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "import-map.json" {
		t.Errorf("dir entries = %v, want exactly [import-map.json]", entries)
	}
}

func TestLoadMissingFileReturnsNotExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !os.IsNotExist(err) {
		t.Errorf("Load() error = %v, want os.IsNotExist", err)
	}
}

func TestNewWithNilImportsProducesEmptyObject(t *testing.T) {
	m := New(nil)
	if m.Imports == nil {
		t.Error("New(nil).Imports is nil, want empty map so JSON marshals to {}")
	}
}

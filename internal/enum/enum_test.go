package enum

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestEnumerateSkipsHiddenAndWebModules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "index.js"), "")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "")
	writeFile(t, filepath.Join(dir, "web_modules", "react.js"), "")
	writeFile(t, filepath.Join(dir, "src", ".hidden.js"), "")

	got, err := Enumerate([]Mount{{Dir: dir, URLPrefix: "/"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "src", "index.js")
	if len(got) != 1 || got[0] != want {
		t.Errorf("Enumerate() = %v, want [%s]", got, want)
	}
}

func TestEnumerateAppliesExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "index.js"), "")
	writeFile(t, filepath.Join(dir, "src", "index_test.js"), "")

	got, err := Enumerate([]Mount{{Dir: dir, URLPrefix: "/"}}, []string{"**/*_test.js"})
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "src", "index.js")
	if len(got) != 1 || got[0] != want {
		t.Errorf("Enumerate() = %v, want [%s]", got, want)
	}
}

func TestEnumerateDedupesAcrossMounts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.js"), "")

	got, err := Enumerate([]Mount{
		{Dir: dir, URLPrefix: "/a"},
		{Dir: dir, URLPrefix: "/b"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("Enumerate() across duplicate mounts = %v, want 1 entry", got)
	}
}

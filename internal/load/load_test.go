package load

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.js")
	if err := os.WriteFile(path, []byte("import x from 'y'"), 0644); err != nil {
		t.Fatal(err)
	}
	src, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if src == nil || src.Contents != "import x from 'y'" {
		t.Errorf("Load() = %+v, want verbatim contents", src)
	}
}

func TestLoadExtensionless(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "README")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	src, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if src != nil {
		t.Errorf("Load(README) = %+v, want nil (skip)", src)
	}
}

func TestLoadHTMLExtractsScriptBlocks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	html := `<!doctype html><html><body>
<script type="module">
import a from 'pkg-a';
</script>
<p>not js</p>
<script>
import b from 'pkg-b';
</script>
</body></html>`
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		t.Fatal(err)
	}
	src, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if src == nil {
		t.Fatal("Load() returned nil source")
	}
	if !strings.Contains(src.Contents, "pkg-a") || !strings.Contains(src.Contents, "pkg-b") {
		t.Errorf("Load() contents = %q, want both script bodies", src.Contents)
	}
}

func TestLoadUnrecognizedExtensionWarns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weird.zzzznotreal")
	if err := os.WriteFile(path, []byte("binary junk"), 0644); err != nil {
		t.Fatal(err)
	}
	var warned bool
	src, err := Load(path, func(msg string) { warned = true })
	if err != nil {
		t.Fatal(err)
	}
	if src != nil {
		t.Errorf("Load() = %+v, want nil for unrecognized extension", src)
	}
	if !warned {
		t.Error("Load() did not invoke warn callback for unrecognized extension")
	}
}

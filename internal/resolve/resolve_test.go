package resolve

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveDirectFileReference(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "util.js"), "export const x = 1;")
	loc, err := Resolve("./src/util.js", root, filepath.Join(root, "node_modules"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if loc.Kind != KindJS {
		t.Errorf("Kind = %v, want KindJS", loc.Kind)
	}
}

func TestResolveDirectFileReferenceAsset(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "assets", "logo.svg"), "<svg></svg>")
	loc, err := Resolve("./assets/logo.svg", root, filepath.Join(root, "node_modules"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if loc.Kind != KindAsset {
		t.Errorf("Kind = %v, want KindAsset", loc.Kind)
	}
}

func TestResolveExportMap(t *testing.T) {
	root := t.TempDir()
	modules := filepath.Join(root, "node_modules")
	writeFile(t, filepath.Join(modules, "somepkg", "package.json"), `{
		"exports": {
			".": {"browser": "./browser.js", "default": "./index.js"},
			"./extra": "./extra.js"
		}
	}`)
	writeFile(t, filepath.Join(modules, "somepkg", "browser.js"), "")
	writeFile(t, filepath.Join(modules, "somepkg", "extra.js"), "")

	loc, err := Resolve("somepkg", root, modules)
	if err != nil {
		t.Fatalf("Resolve(somepkg) error = %v", err)
	}
	if loc.Kind != KindJS || filepath.Base(loc.Path) != "browser.js" {
		t.Errorf("Resolve(somepkg) = %+v, want browser.js via browser condition", loc)
	}

	loc2, err := Resolve("somepkg/extra", root, modules)
	if err != nil {
		t.Fatalf("Resolve(somepkg/extra) error = %v", err)
	}
	if filepath.Base(loc2.Path) != "extra.js" {
		t.Errorf("Resolve(somepkg/extra) = %+v, want extra.js", loc2)
	}
}

func TestResolveExportMapNonStringErrors(t *testing.T) {
	root := t.TempDir()
	modules := filepath.Join(root, "node_modules")
	writeFile(t, filepath.Join(modules, "badpkg", "package.json"), `{
		"exports": {".": {"worker": "./worker.js"}}
	}`)
	_, err := Resolve("badpkg", root, modules)
	if err == nil {
		t.Fatal("Resolve(badpkg) expected ExportMapError, got nil")
	}
	if _, ok := err.(*ExportMapError); !ok {
		t.Errorf("Resolve(badpkg) error type = %T, want *ExportMapError", err)
	}
}

func TestResolveManifestLookupPriority(t *testing.T) {
	root := t.TempDir()
	modules := filepath.Join(root, "node_modules")
	writeFile(t, filepath.Join(modules, "prioritypkg", "package.json"), `{
		"module": "./esm.js",
		"main:esnext": "./esnext.js",
		"main": "./cjs.js"
	}`)
	writeFile(t, filepath.Join(modules, "prioritypkg", "esm.js"), "")
	writeFile(t, filepath.Join(modules, "prioritypkg", "esnext.js"), "")
	writeFile(t, filepath.Join(modules, "prioritypkg", "cjs.js"), "")

	loc, err := Resolve("prioritypkg", root, modules)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if filepath.Base(loc.Path) != "esm.js" {
		t.Errorf("Resolve() = %+v, want esm.js (module field wins)", loc)
	}
}

func TestResolveImplicitIndexTypesOnlyIgnored(t *testing.T) {
	root := t.TempDir()
	modules := filepath.Join(root, "node_modules")
	writeFile(t, filepath.Join(modules, "typesonly", "package.json"), `{"types": "./index.d.ts"}`)

	loc, err := Resolve("typesonly", root, modules)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if loc.Kind != KindIgnore {
		t.Errorf("Kind = %v, want KindIgnore for types-only implicit-index package", loc.Kind)
	}
}

func TestResolveImplicitIndexNoTypesErrors(t *testing.T) {
	root := t.TempDir()
	modules := filepath.Join(root, "node_modules")
	writeFile(t, filepath.Join(modules, "broken", "package.json"), `{}`)

	_, err := Resolve("broken", root, modules)
	if err == nil {
		t.Fatal("Resolve(broken) expected NotFoundError, got nil")
	}
	if _, ok := err.(*NotFoundError); !ok {
		t.Errorf("Resolve(broken) error type = %T, want *NotFoundError", err)
	}
}

func TestResolveRawFallback(t *testing.T) {
	root := t.TempDir()
	modules := filepath.Join(root, "node_modules")
	writeFile(t, filepath.Join(modules, "nomanifest", "index.js"), "")

	loc, err := Resolve("nomanifest", root, modules)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if loc.Kind != KindJS {
		t.Errorf("Kind = %v, want KindJS via raw fallback", loc.Kind)
	}
}

func TestResolveReservedNameRejected(t *testing.T) {
	root := t.TempDir()
	modules := filepath.Join(root, "node_modules")
	_, err := Resolve("@reactesm/react", root, modules)
	if err == nil {
		t.Fatal("Resolve(@reactesm/react) expected ObsoletePackageError, got nil")
	}
	if _, ok := err.(*ObsoletePackageError); !ok {
		t.Errorf("error type = %T, want *ObsoletePackageError", err)
	}

	_, err = Resolve("@pika/react-dom", root, modules)
	if _, ok := err.(*ObsoletePackageError); !ok {
		t.Errorf("Resolve(@pika/react-dom) error type = %T, want *ObsoletePackageError", err)
	}
}

func TestResolvePackageNotFound(t *testing.T) {
	root := t.TempDir()
	modules := filepath.Join(root, "node_modules")
	_, err := Resolve("ghost-package", root, modules)
	if err == nil {
		t.Fatal("Resolve(ghost-package) expected error, got nil")
	}
	nfe, ok := err.(*NotFoundError)
	if !ok {
		t.Fatalf("error type = %T, want *NotFoundError", err)
	}
	if nfe.Hint == "" {
		t.Error("NotFoundError.Hint is empty, want examined path")
	}
}

func TestResolveBrowserObjectProbe(t *testing.T) {
	root := t.TempDir()
	modules := filepath.Join(root, "node_modules")
	writeFile(t, filepath.Join(modules, "browserobj", "package.json"), `{
		"main": "./server.js",
		"browser": {"browserobj": "./client.js"}
	}`)
	writeFile(t, filepath.Join(modules, "browserobj", "client.js"), "")
	writeFile(t, filepath.Join(modules, "browserobj", "server.js"), "")

	loc, err := Resolve("browserobj", root, modules)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if filepath.Base(loc.Path) != "client.js" {
		t.Errorf("Resolve() = %+v, want client.js via browser map probe on bare specifier key", loc)
	}
}

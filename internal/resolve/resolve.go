package resolve

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mprinc/snowpack/internal/specifier"
)

// Kind classifies what a DependencyLocation points at.
type Kind int

const (
	KindJS Kind = iota
	KindAsset
	KindIgnore
)

// Location is the §3 DependencyLocation record.
type Location struct {
	Kind Kind
	Path string
}

// jsExts are the extensions that make a direct file reference a JS module
// rather than an asset.
var jsExts = map[string]bool{".js": true, ".mjs": true, ".cjs": true}

// NotFoundError is the §7 "package not found" error, carrying an optional
// hint of the path that was examined.
type NotFoundError struct {
	Specifier string
	Hint      string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("package not found: %s", e.Specifier)
	if e.Hint != "" {
		msg += " (looked at " + e.Hint + ")"
	}
	return msg
}

// Resolve runs the §4.5 four-step cascade rooted at projectRoot, looking
// node_modules up from modulesDir (typically projectRoot/node_modules).
func Resolve(spec, projectRoot, modulesDir string) (Location, error) {
	// Step 1: direct file reference.
	if ext := filepath.Ext(spec); ext != "" && !specifier.IsValidTopLevelPackageName(spec) {
		resolved, ok := nodeResolve(filepath.Join(projectRoot, spec))
		if !ok {
			return Location{}, &NotFoundError{Specifier: spec, Hint: filepath.Join(projectRoot, spec)}
		}
		kind := KindAsset
		if jsExts[filepath.Ext(resolved)] {
			kind = KindJS
		}
		return Location{Kind: kind, Path: resolved}, nil
	}

	pkgName := specifier.PackageName(spec)
	subpath := specifier.Subpath(spec, pkgName)

	if IsReservedName(pkgName) {
		return Location{}, &ObsoletePackageError{Name: pkgName}
	}

	pkgDir := filepath.Join(modulesDir, pkgName)
	manifest, err := LoadManifest(pkgDir)
	if err != nil {
		// No manifest at the specifier's package path: step 4 raw fallback.
		return resolveRaw(spec, modulesDir)
	}

	// Step 2: export map. subpath is already keyed correctly by
	// specifier.Subpath: "." for the package root, "./x" otherwise.
	if value, ok, err := manifest.ExportMapEntry(subpath); err != nil {
		if emErr, isEM := err.(*ExportMapError); isEM {
			emErr.Package = pkgName
		}
		return Location{}, err
	} else if ok {
		return Location{Kind: KindJS, Path: filepath.Join(pkgDir, value)}, nil
	}

	// Step 3: package manifest lookup (root subpath only; a non-root
	// subpath with no export-map entry falls straight to raw resolution).
	if subpath != "." {
		return resolveRaw(spec, modulesDir)
	}

	entry, implicitIndex := manifest.ManifestEntry(spec)
	resolved, ok := nodeResolve(filepath.Join(pkgDir, entry))
	if !ok {
		if implicitIndex && manifest.HasTypesOnly {
			return Location{Kind: KindIgnore}, nil
		}
		return Location{}, &NotFoundError{Specifier: spec, Hint: filepath.Join(pkgDir, entry)}
	}
	return Location{Kind: KindJS, Path: resolved}, nil
}

// resolveRaw implements step 4: node-style resolution directly on the
// specifier, rooted at modulesDir.
func resolveRaw(spec, modulesDir string) (Location, error) {
	resolved, ok := nodeResolve(filepath.Join(modulesDir, spec))
	if !ok {
		return Location{}, &NotFoundError{Specifier: spec, Hint: filepath.Join(modulesDir, spec)}
	}
	kind := KindAsset
	if jsExts[filepath.Ext(resolved)] {
		kind = KindJS
	}
	return Location{Kind: kind, Path: resolved}, nil
}

// nodeResolve attempts Node's CommonJS file-then-directory resolution
// algorithm against base: base itself, base+{.js,.mjs,.cjs,.json}, then
// base/index.{js,mjs,cjs,json}.
func nodeResolve(base string) (string, bool) {
	if fi, err := os.Stat(base); err == nil && !fi.IsDir() {
		return base, true
	}
	for _, ext := range []string{".js", ".mjs", ".cjs", ".json"} {
		candidate := base + ext
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, true
		}
	}
	if fi, err := os.Stat(base); err == nil && fi.IsDir() {
		for _, name := range []string{"index.js", "index.mjs", "index.cjs", "index.json"} {
			candidate := filepath.Join(base, name)
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				return candidate, true
			}
		}
	}
	return "", false
}

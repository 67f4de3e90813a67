// Package resolve implements the Specifier Resolver (§4.5): mapping a bare
// specifier to a concrete on-disk DependencyLocation via the four-step
// resolution cascade, reading package.json's conditional exports map,
// browser-aware module fields, and the implicit-index fallback.
//
// The exports-map handling here follows a simplified
// four-condition lookup (browser -> import -> default -> require), not the
// full nested conditional-exports algorithm Node itself implements (§9 open
// question — the spec explicitly preserves this simplification).
package resolve

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// exportValue is a node in the package.json "exports" tree: either a
// string leaf or a map of condition/subpath keys to child nodes.
type exportValue struct {
	Path string
	Map  map[string]*exportValue
}

func (v *exportValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Path = s
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	v.Map = make(map[string]*exportValue, len(m))
	for k, raw := range m {
		child := &exportValue{}
		if err := json.Unmarshal(raw, child); err != nil {
			return err
		}
		v.Map[k] = child
	}
	return nil
}

// manifestFields are the §3 PackageManifest fields the resolver reads.
type manifestFields struct {
	Exports      *exportValue    `json:"exports"`
	BrowserField json.RawMessage `json:"browser"`
	Module       string          `json:"module"`
	MainESNext   string          `json:"main:esnext"`
	Main         string          `json:"main"`
	Types        string          `json:"types"`
	Typings      string          `json:"typings"`
}

// Manifest is the parsed form of a package's package.json, exposing only
// what the resolution cascade needs.
type Manifest struct {
	Dir          string
	Exports      *exportValue
	BrowserMain  string // "browser" field when it is a string
	BrowserMap   map[string]string
	Module       string
	MainESNext   string
	Main         string
	HasTypesOnly bool // "types" or "typings" present
}

// LoadManifest reads and parses pkgDir/package.json.
func LoadManifest(pkgDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return nil, err
	}
	var raw manifestFields
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	m := &Manifest{
		Dir:          pkgDir,
		Exports:      raw.Exports,
		Module:       raw.Module,
		MainESNext:   raw.MainESNext,
		Main:         raw.Main,
		HasTypesOnly: raw.Types != "" || raw.Typings != "",
	}

	if len(raw.BrowserField) > 0 {
		var s string
		if err := json.Unmarshal(raw.BrowserField, &s); err == nil {
			m.BrowserMain = s
		} else {
			var bm map[string]string
			if err := json.Unmarshal(raw.BrowserField, &bm); err == nil {
				m.BrowserMap = bm
			}
		}
	}

	return m, nil
}

// conditionOrder is the §3/§4.5 condition priority for export-map
// resolution: browser -> import -> default -> require. The "browser"-object
// probe in ManifestEntry uses its own key list instead.
var conditionOrder = []string{"browser", "import", "default", "require"}

// resolveCondition recursively resolves a condition node following
// conditionOrder. Returns "" if nothing resolves.
func resolveCondition(v *exportValue) string {
	if v == nil {
		return ""
	}
	if v.Path != "" {
		return v.Path
	}
	if v.Map == nil {
		return ""
	}
	for _, key := range conditionOrder {
		if child, ok := v.Map[key]; ok {
			if result := resolveCondition(child); result != "" {
				return result
			}
		}
	}
	return ""
}

// ExportMapEntry looks up subpath key "./"+subpath (or "." for root) in
// the manifest's exports map. ok is false when the key is absent (caller
// falls through to step 3); err is non-nil when the key is present but
// resolves to no string at all (§7 ExportMapMismatch).
func (m *Manifest) ExportMapEntry(subpathKey string) (value string, ok bool, err error) {
	if m.Exports == nil {
		return "", false, nil
	}
	entry, present := m.Exports.Map[subpathKey]
	if !present {
		if m.Exports.Map == nil && subpathKey == "." {
			// A bare-string "exports" field is shorthand for {".": "..."}.
			if m.Exports.Path != "" {
				return m.Exports.Path, true, nil
			}
			return "", false, nil
		}
		return "", false, nil
	}
	result := resolveCondition(entry)
	if result == "" {
		return "", true, &ExportMapError{Subpath: subpathKey}
	}
	return result, true, nil
}

// ManifestEntry selects the package's root entry point per §4.5 step 3's
// priority: browser:module -> module -> main:esnext -> browser -> main. If
// the resolved "browser" field is an object, probes keys
// specifier -> "./index.js" -> "./index" -> "./" -> "." in that order.
// Returns ("", true) when nothing is named at all (implicit-index case).
func (m *Manifest) ManifestEntry(specifierForBrowserObjectProbe string) (entry string, implicitIndex bool) {
	// The browser:module slot is filled from the "browser" object's
	// "module" key (BrowserMap["module"]) when present, before falling
	// through to the plain Module field. A top-level "browser:module" field
	// in package.json is not read.
	if m.BrowserMap != nil {
		if v, ok := m.BrowserMap["module"]; ok && v != "" {
			return v, false
		}
	}
	if m.Module != "" {
		return m.Module, false
	}
	if m.MainESNext != "" {
		return m.MainESNext, false
	}
	if m.BrowserMain != "" {
		return m.BrowserMain, false
	}
	if m.BrowserMap != nil {
		for _, key := range []string{specifierForBrowserObjectProbe, "./index.js", "./index", "./", "."} {
			if key == "" {
				continue
			}
			if v, ok := m.BrowserMap[key]; ok && v != "" {
				return v, false
			}
		}
	}
	if m.Main != "" {
		return m.Main, false
	}
	return "index.js", true
}

// ExportMapError is the §7 ExportMapMismatch error: a subpath key was
// present in the exports map but resolved to no string.
type ExportMapError struct {
	Package string
	Subpath string
}

func (e *ExportMapError) Error() string {
	return "package " + e.Package + ": export map entry " + e.Subpath + " resolved to no string"
}

// ObsoletePackageError is the §7 ObsoletePackage error.
type ObsoletePackageError struct {
	Name string
}

func (e *ObsoletePackageError) Error() string {
	return "package " + e.Name + " is an obsolete workaround — use the official package instead"
}

// reservedPrefixes are the package-name patterns §4.5 rejects at step 3.
var reservedPrefixes = []string{"@reactesm/", "@pika/react"}

// IsReservedName reports whether pkgName matches a reserved workaround
// package pattern.
func IsReservedName(pkgName string) bool {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(pkgName, p) {
			return true
		}
	}
	return false
}

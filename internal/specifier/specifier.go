// Package specifier classifies module specifiers as they appear in source
// and models the InstallTarget record that the rest of the install
// pipeline (scan, aggregate, resolve, bundle) is built around.
package specifier

import (
	"path"
	"regexp"
	"strings"
)

// Kind classifies a specifier's textual shape.
type Kind int

const (
	// KindBare is a package or package-subpath reference, e.g. "react" or
	// "react-dom/client". Only bare specifiers become install targets.
	KindBare Kind = iota
	// KindRelative starts with "./" or "../".
	KindRelative
	// KindAbsolute is a filesystem-absolute path.
	KindAbsolute
	// KindURL contains a "://" scheme separator.
	KindURL
)

// Classify returns the Kind of a raw specifier string.
func Classify(spec string) Kind {
	switch {
	case strings.Contains(spec, "://"):
		return KindURL
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		return KindRelative
	case strings.HasPrefix(spec, "/"):
		return KindAbsolute
	default:
		return KindBare
	}
}

// IsBareName reports whether spec matches the bare-specifier pattern used
// throughout the pipeline: begins with a letter, underscore, or "@", and
// does not contain a URL scheme.
func IsBareName(spec string) bool {
	if spec == "" || strings.Contains(spec, "://") {
		return false
	}
	c := spec[0]
	return c == '@' || c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// Target is the immutable-by-convention InstallTarget record of §3: a
// single specifier plus its aggregated usage shape. Callers build up a
// Target with Merge rather than mutating shared state concurrently.
type Target struct {
	Specifier string
	All       bool
	Default   bool
	Namespace bool
	Named     []string
}

// Merge combines two targets for the same specifier per §3's merge rule:
// All/Default/Namespace are OR'd, Named is a deduplicated, order-insensitive
// union. The receiver's Specifier is kept; callers merge same-specifier
// targets only.
func (t Target) Merge(o Target) Target {
	named := make(map[string]struct{}, len(t.Named)+len(o.Named))
	for _, n := range t.Named {
		named[n] = struct{}{}
	}
	for _, n := range o.Named {
		named[n] = struct{}{}
	}
	merged := make([]string, 0, len(named))
	for n := range named {
		merged = append(merged, n)
	}
	return Target{
		Specifier: t.Specifier,
		All:       t.All || o.All,
		Default:   t.Default || o.Default,
		Namespace: t.Namespace || o.Namespace,
		Named:     merged,
	}
}

// PackageName extracts the npm package name that owns a bare specifier.
// "react" -> "react"; "react-dom/client" -> "react-dom";
// "@scope/pkg" -> "@scope/pkg"; "@scope/pkg/sub" -> "@scope/pkg".
func PackageName(spec string) string {
	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 3)
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return spec
	}
	parts := strings.SplitN(spec, "/", 2)
	return parts[0]
}

// Subpath returns the package-relative subpath key used for export-map
// lookups: "." for the package root, "./sub" otherwise.
func Subpath(spec, pkgName string) string {
	if spec == pkgName {
		return "."
	}
	return "./" + strings.TrimPrefix(spec, pkgName+"/")
}

// isBabelMacro matches the reserved babel-macro specifier pattern
// ("[./]macro(.js)?$") dropped as a final filter in §4.3.
func isBabelMacro(spec string) bool {
	s := spec
	s = strings.TrimSuffix(s, ".js")
	if !strings.HasSuffix(s, "macro") {
		return false
	}
	if s == "macro" {
		return false
	}
	prev := s[len(s)-len("macro")-1]
	return prev == '.' || prev == '/'
}

// IsBabelMacro reports whether spec is a babel-macro specifier that §4.3
// drops as a final filter regardless of any other classification.
func IsBabelMacro(spec string) bool {
	return isBabelMacro(spec)
}

// ToWebModuleSpecifier applies the §4.3 specifier-classification algorithm
// to an already-extracted specifier (the text between the quotes/backticks),
// returning the web-module specifier or "" when it should be dropped. The
// "import type" statement check happens one level up, in package scan,
// which has access to the full statement text.
func ToWebModuleSpecifier(raw string) string {
	if IsBareName(raw) {
		if IsBabelMacro(raw) {
			return ""
		}
		return raw
	}

	// Strip a trailing "?query" suffix before searching for web_modules/.
	spec := raw
	if i := strings.IndexByte(spec, '?'); i >= 0 {
		spec = spec[:i]
	}

	const marker = "web_modules/"
	idx := strings.Index(spec, marker)
	if idx < 0 {
		return ""
	}
	remainder := spec[idx+len(marker):]

	stripped := remainder
	switch {
	case strings.HasSuffix(stripped, ".mjs"):
		stripped = strings.TrimSuffix(stripped, ".mjs")
	case strings.HasSuffix(stripped, ".js"):
		stripped = strings.TrimSuffix(stripped, ".js")
	}

	var result string
	if isValidTopLevelPackageName(stripped) {
		result = stripped
	} else {
		result = remainder
	}
	if IsBabelMacro(result) {
		return ""
	}
	return result
}

// isValidTopLevelPackageName reports whether name is a syntactically valid
// top-level npm package name: "pkg" or "@scope/pkg", no further subpath
// segments.
func isValidTopLevelPackageName(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, "@") {
		parts := strings.Split(name, "/")
		return len(parts) == 2 && parts[0] != "@" && parts[1] != ""
	}
	return !strings.Contains(name, "/")
}

// IsValidTopLevelPackageName is the exported form of isValidTopLevelPackageName,
// used by the resolver (§4.5 step 1) to decide whether a specifier with a
// file extension should be treated as a direct file reference.
func IsValidTopLevelPackageName(name string) bool {
	return isValidTopLevelPackageName(name)
}

// invalidFilenameChars matches characters §3 requires a sanitized name to
// not contain: path separators, scope/version punctuation, and the other
// usual filesystem-unsafe characters.
var invalidFilenameChars = regexp.MustCompile(`[\\/:*?"<>|@]`)

// Sanitize derives a filename-safe output name from a bare specifier per
// §3: ".js"/".mjs" is stripped only when spec is itself a valid top-level
// package name (so "lodash" -> "lodash", not mistaken for a file), otherwise
// only the literal extension present is stripped (so "./foo.css" and
// "./foo.js" both become "foo"). What remains is run through a character
// replacement so scoped packages ("@scope/pkg") and subpaths
// ("pkg/sub/mod") collapse to a single flat path segment. The result is not
// guaranteed injective by construction; callers detect collisions across a
// run and surface an error rather than overwrite (§3, §8 Testable Property 5).
func Sanitize(spec string) string {
	s := spec
	if IsValidTopLevelPackageName(spec) {
		s = strings.TrimSuffix(s, ".mjs")
		s = strings.TrimSuffix(s, ".js")
	} else if ext := path.Ext(s); ext != "" {
		s = strings.TrimSuffix(s, ext)
	}
	s = strings.TrimPrefix(s, "@")
	s = strings.TrimPrefix(s, "../")
	s = strings.TrimPrefix(s, "./")
	return invalidFilenameChars.ReplaceAllString(s, "__")
}

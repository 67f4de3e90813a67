// Package alias models the §3 AliasEntry record and its classification.
package alias

import (
	"sort"
	"strings"
)

// Kind classifies what an alias target names.
type Kind int

const (
	KindPackage Kind = iota
	KindPath
	KindURL
)

// Entry is a single "from" -> "to" alias, classified by Kind.
type Entry struct {
	From string
	To   string
	Kind Kind
}

// Classify determines an alias target's Kind from its literal form: a URL
// scheme, a path-like prefix ("./", "../", "/"), or otherwise a package
// name.
func Classify(to string) Kind {
	switch {
	case strings.Contains(to, "://"):
		return KindURL
	case strings.HasPrefix(to, "./") || strings.HasPrefix(to, "../") || strings.HasPrefix(to, "/"):
		return KindPath
	default:
		return KindPackage
	}
}

// New builds an Entry from a raw from/to pair, classifying the target.
func New(from, to string) Entry {
	return Entry{From: from, To: to, Kind: Classify(to)}
}

// BuildMap classifies a raw from->to config map into a slice of Entry,
// sorted by From for deterministic iteration.
func BuildMap(raw map[string]string) []Entry {
	entries := make([]Entry, 0, len(raw))
	for from, to := range raw {
		entries = append(entries, New(from, to))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].From < entries[j].From })
	return entries
}

// Rewrite applies package-kind alias rewriting to a specifier: if an entry's
// From exactly matches spec and its Kind is KindPackage, the specifier is
// replaced by the alias target. Path/URL aliases never participate in
// specifier rewriting (§4.4) and are not passed to the bundler's alias
// stage either; their only effect is to drop the target (see Excludes).
func Rewrite(spec string, entries []Entry) string {
	for _, e := range entries {
		if e.Kind == KindPackage && e.From == spec {
			return e.To
		}
	}
	return spec
}

// Excludes reports whether spec matches a path- or URL-kind alias's From,
// meaning the target is excluded from install targets entirely (§3
// AliasEntry: "path/URL aliases are excluded from install targets
// entirely").
func Excludes(spec string, entries []Entry) bool {
	for _, e := range entries {
		if e.From == spec && e.Kind != KindPackage {
			return true
		}
	}
	return false
}

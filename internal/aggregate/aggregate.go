// Package aggregate implements the Target Aggregator (§4.4): it unions the
// scanned-import, known-entrypoint, and remote-dependency target streams,
// applies alias rewriting and path/URL alias exclusion, filters
// externalized packages, and returns the surviving targets sorted
// lexicographically for deterministic downstream processing.
package aggregate

import (
	"sort"
	"strings"

	"github.com/mprinc/snowpack/internal/alias"
	"github.com/mprinc/snowpack/internal/specifier"
)

// Sources bundles the three target streams §4.4 unions.
type Sources struct {
	// Scanned is the output of scan.Scan across every enumerated/loaded
	// source file, not yet merged by specifier.
	Scanned []specifier.Target
	// KnownEntrypoints are specifiers force-installed regardless of
	// whether the scanner found them, each treated as all=true with no
	// shape.
	KnownEntrypoints []string
	// RemoteDependencies holds the declared remote-dependency manifest;
	// its keys become install targets, also all=true with no shape.
	RemoteDependencies []string
}

// Aggregate runs the full §4.4 pipeline and returns the deterministically
// sorted surviving targets.
func Aggregate(src Sources, aliases []alias.Entry, externals []string) []specifier.Target {
	byspec := make(map[string]specifier.Target)

	merge := func(t specifier.Target) {
		if existing, ok := byspec[t.Specifier]; ok {
			byspec[t.Specifier] = existing.Merge(t)
		} else {
			byspec[t.Specifier] = t
		}
	}

	for _, t := range src.Scanned {
		merge(t)
	}
	for _, spec := range src.KnownEntrypoints {
		merge(specifier.Target{Specifier: spec, All: true})
	}
	for _, spec := range src.RemoteDependencies {
		merge(specifier.Target{Specifier: spec, All: true})
	}

	rewritten := make(map[string]specifier.Target, len(byspec))
	for spec, t := range byspec {
		if alias.Excludes(spec, aliases) {
			continue
		}
		newSpec := alias.Rewrite(spec, aliases)
		t.Specifier = newSpec
		if existing, ok := rewritten[newSpec]; ok {
			rewritten[newSpec] = existing.Merge(t)
		} else {
			rewritten[newSpec] = t
		}
	}

	var out []specifier.Target
	for spec, t := range rewritten {
		if IsExternal(spec, externals) {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Specifier < out[j].Specifier })
	return out
}

// IsExternal reports whether spec is covered by any externalized-package
// prefix rule: spec == ext, or spec starts with ext + "/".
func IsExternal(spec string, externals []string) bool {
	for _, ext := range externals {
		if spec == ext || strings.HasPrefix(spec, ext+"/") {
			return true
		}
	}
	return false
}

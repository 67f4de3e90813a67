// Package scan implements the Import Scanner (§4.3): a two-phase parse of
// loaded source into InstallTarget records.
//
// Phase 1 is a regexp-based "lexer" that locates import-like statements and
// classifies each as static or dynamic, producing the same
// (specifier-start, specifier-end, statement-start, statement-end,
// dynamic-flag) shape the spec describes for a real ES-module lexer, without
// depending on one (see DESIGN.md — no pack library offers this). Phase 2 is
// the fallback: strip comments, keep only import-looking lines, re-lex.
// Phase 1 is skipped outright for .jsx/.tsx, mirroring the spec's note that
// real ES-module lexers choke on JSX syntax.
package scan

import (
	"regexp"
	"strings"

	"github.com/mprinc/snowpack/internal/load"
	"github.com/mprinc/snowpack/internal/specifier"
)

// dynamicFlag mirrors the spec's es-module-lexer convention.
type dynamicFlag int

const (
	flagStatic dynamicFlag = -1
	flagMeta   dynamicFlag = -2
	// flagDynamic >= 0 in the spec encodes the dynamic-import call's start
	// offset; we only need to distinguish it from static/meta so a single
	// sentinel value suffices here.
	flagDynamic dynamicFlag = 0
)

type importMatch struct {
	statement  string
	specifier  string
	flag       dynamicFlag
	isTypeOnly bool
}

// lexRe recognizes the statement shapes the spec's lexer tuple covers:
// static "import ... from '...'", bare "import '...'", dynamic
// import('...')/import(`...`), and import.meta (dropped as flagMeta).
var lexRe = regexp.MustCompile(
	`(?s)` +
		`import\s*\.\s*meta` + `|` +
		`import\s*\(\s*(['"` + "`" + `])((?:\\.|[^\\])*?)(['"` + "`" + `])\s*\)` + `|` +
		`import\s+type\s+[^'"` + "`" + `\n]*?from\s*(['"])((?:\\.|[^\\])*?)(['"])` + `|` +
		`import\s+[^'"` + "`" + `;\n]*?from\s*(['"])((?:\\.|[^\\])*?)(['"])` + `|` +
		`import\s*(['"])((?:\\.|[^\\])*?)(['"])\s*;?`,
)

// commentRe strips // line comments and /* */ block comments for phase 2.
var commentRe = regexp.MustCompile(`(?s)//[^\n]*|/\*.*?\*/`)

// importLineRe keeps only import-looking lines for phase 2's fallback,
// concatenated and re-lexed.
var importLineRe = regexp.MustCompile(`(?m)^[^\n]*\bimport\s*[(\s'"` + "`" + `].*$`)

// defaultImportRe detects a default-binding static import per §4.3's shape
// extraction: `import X from ...` optionally followed by a named list.
var defaultImportRe = regexp.MustCompile(`^\s*import\s+\w+(?:\s*,\s*\{[^}]*\})?\s+from`)

// namedBlockRe extracts the contents of a `{ ... }` named-import block.
var namedBlockRe = regexp.MustCompile(`\{([^}]*)\}`)

// Scan runs the two-phase parse over a loaded source file and returns the
// InstallTargets it contains (pre-aggregation — callers merge same-
// specifier targets across files via aggregate.Aggregate).
func Scan(src *load.Source) ([]specifier.Target, error) {
	matches := phase1(src.Contents, src.Extension)
	if matches == nil {
		matches = phase2(src.Contents)
	}

	var targets []specifier.Target
	for _, m := range matches {
		t, ok := classify(m)
		if !ok {
			continue
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// phase1 invokes the regex "lexer" directly on raw contents. It returns nil
// (triggering the phase-2 fallback) for .jsx/.tsx files, where the spec
// notes a real ES-module lexer is known to break.
func phase1(contents, ext string) []importMatch {
	if ext == ".jsx" || ext == ".tsx" {
		return nil
	}
	return lex(contents)
}

// phase2 strips comments, retains only import-looking lines, and re-lexes
// the concatenation — the fallback used when phase 1 is skipped or (in a
// real ES-module lexer) would have failed to parse.
func phase2(contents string) []importMatch {
	stripped := commentRe.ReplaceAllString(contents, "")
	lines := importLineRe.FindAllString(stripped, -1)
	return lex(strings.Join(lines, "\n"))
}

func lex(contents string) []importMatch {
	var out []importMatch
	for _, m := range lexRe.FindAllStringSubmatch(contents, -1) {
		full := m[0]
		switch {
		case m[2] != "":
			// Dynamic import("...") / import(`...`).
			out = append(out, importMatch{statement: full, specifier: m[2], flag: flagDynamic})
		case m[5] != "":
			// import type ... from "..." — dropped downstream by classify.
			out = append(out, importMatch{statement: full, specifier: m[5], flag: flagStatic, isTypeOnly: true})
		case m[8] != "":
			// Static `import ... from "..."`.
			out = append(out, importMatch{statement: full, specifier: m[8], flag: flagStatic})
		case m[11] != "":
			// Bare side-effect `import "...";`.
			out = append(out, importMatch{statement: full, specifier: m[11], flag: flagStatic})
		default:
			// Only import.meta has no literal-specifier capture group.
			out = append(out, importMatch{statement: full, flag: flagMeta})
		}
	}
	return out
}

// classify turns a single lexer tuple into an InstallTarget, applying the
// §4.3 dynamic-flag rules, specifier classification, and shape extraction.
func classify(m importMatch) (specifier.Target, bool) {
	if m.flag == flagMeta {
		return specifier.Target{}, false
	}

	if m.isTypeOnly {
		return specifier.Target{}, false
	}

	if m.flag != flagStatic {
		// Dynamic import: only literal-string/template-without-interpolation
		// arguments are accepted; the lexer's capture group already only
		// matches literal quoted/backtick arguments, so non-literal dynamic
		// imports (e.g. import(variable)) never reach here at all.
		if strings.Contains(m.specifier, "${") {
			return specifier.Target{}, false
		}
	}

	web := specifier.ToWebModuleSpecifier(m.specifier)
	if web == "" {
		return specifier.Target{}, false
	}
	if specifier.Classify(web) != specifier.KindBare {
		return specifier.Target{}, false
	}

	t := specifier.Target{Specifier: web}

	if m.flag != flagStatic {
		t.All = true
		return t, true
	}

	t.Default = defaultImportRe.MatchString(m.statement)
	t.Namespace = strings.Contains(m.statement, "*")

	if nm := namedBlockRe.FindStringSubmatch(m.statement); nm != nil {
		for _, part := range strings.Split(nm[1], ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			if idx := strings.Index(name, " as "); idx >= 0 {
				name = strings.TrimSpace(name[:idx])
			}
			t.Named = append(t.Named, name)
		}
	}

	t.All = !t.Default && !t.Namespace && len(t.Named) == 0

	return t, true
}

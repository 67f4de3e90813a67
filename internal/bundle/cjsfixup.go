package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
)

// wellKnownCJSNamedExports is the built-in allow-list of well-known CJS
// packages whose named-import convention is known ahead of time, used by
// the install-target wrapper stage when neither Node-based detection, nor
// static __commonJS analysis, nor a configured namedExports entry yields any
// export names for an `export default require_xxx()` entry (e.g. the wrapper
// assigns module.exports as a whole instead of individual exports.x).
var wellKnownCJSNamedExports = map[string][]string{
	"react":         {"useState", "useEffect", "useRef", "useMemo", "useCallback", "useContext", "createElement", "Fragment", "Component", "PureComponent", "forwardRef", "memo"},
	"react-dom":     {"render", "hydrate", "createPortal", "findDOMNode", "unmountComponentAtNode"},
	"prop-types":    {"array", "bool", "func", "number", "object", "string", "symbol", "node", "element", "shape"},
	"scheduler":     {"unstable_scheduleCallback", "unstable_cancelCallback", "unstable_now"},
	"use-sync-external-store": {"useSyncExternalStore"},
}

// cjsDeclRe matches `var require_xxx = __commonJS({` wrapper declarations.
var cjsDeclRe = regexp.MustCompile(`var\s+(require_\w+)\s*=\s*__commonJS\(`)

// cjsExportRe matches `exports.xxx = ` named CJS exports.
var cjsExportRe = regexp.MustCompile(`exports\.(\w+)\s*=`)

// cjsDelegateRe matches `module.exports = require_xxx()` delegation.
var cjsDelegateRe = regexp.MustCompile(`module\.exports\s*=\s*(require_\w+)\(\)`)

// defaultRequireRe matches `export default require_xxx()` in entry files.
var defaultRequireRe = regexp.MustCompile(`export default (require_\w+)\(\)`)

// jsReservedWords cannot appear as bare identifiers in export declarations.
var jsReservedWords = map[string]bool{
	"default": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "delete": true, "do": true,
	"else": true, "enum": true, "export": true, "extends": true, "finally": true,
	"for": true, "function": true, "if": true, "import": true, "in": true,
	"instanceof": true, "let": true, "new": true, "return": true, "super": true,
	"switch": true, "this": true, "throw": true, "try": true, "typeof": true,
	"var": true, "void": true, "while": true, "with": true, "yield": true,
}

type cjsModuleInfo struct {
	exports     []string
	delegatesTo string
}

func hasNamedShape(targets map[string]Target) bool {
	for _, t := range targets {
		if len(t.Named) > 0 {
			return true
		}
	}
	return false
}

// installTargetWrapperPlugin is stage 9: every output file whose body is
// `export default require_xxx()` is rewritten into a wrapper that keeps the
// default export and adds named re-exports. The names come from Node-based
// detection (run only when nodePath is set and some target imports named
// bindings), falling back to static __commonJS analysis, then configured
// namedExports overrides, then the well-known allow-list.
func installTargetWrapperPlugin(targets map[string]Target, namedExports map[string][]string, nodePath string) api.Plugin {
	return api.Plugin{
		Name: "install-target-wrapper",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				depCache := make(map[string][]byte, len(result.OutputFiles))
				for _, f := range result.OutputFiles {
					depCache[f.Path] = f.Contents
				}

				var known map[string][]string
				if nodePath != "" && hasNamedShape(targets) {
					entryMap := make(map[string]string)
					for path := range depCache {
						entryMap[path] = path
					}
					if detected, err := detectCJSExports(nodePath, entryMap); err == nil {
						known = detected
					}
				}

				addCJSNamedExportsToCache(depCache, known, namedExports)
				fixDynamicRequires(depCache)

				for i, f := range result.OutputFiles {
					if updated, ok := depCache[f.Path]; ok {
						result.OutputFiles[i].Contents = updated
					}
				}
				return api.OnEndResult{}, nil
			})
		},
	}
}

// addCJSNamedExportsToCache scans every file for __commonJS wrappers,
// follows delegation chains, and rewrites entries of the form `export
// default require_xxx()` into a default export plus named re-exports.
func addCJSNamedExportsToCache(depCache map[string][]byte, knownExports map[string][]string, configuredNamedExports map[string][]string) {
	cjsInfo := make(map[string]*cjsModuleInfo)
	for _, code := range depCache {
		codeStr := string(code)
		if !strings.Contains(codeStr, "__commonJS") {
			continue
		}
		declMatches := cjsDeclRe.FindAllStringSubmatchIndex(codeStr, -1)
		for i, match := range declMatches {
			funcName := codeStr[match[2]:match[3]]
			start := match[0]
			end := len(codeStr)
			if i+1 < len(declMatches) {
				end = declMatches[i+1][0]
			}
			block := codeStr[start:end]

			info := &cjsModuleInfo{}
			if dm := cjsDelegateRe.FindStringSubmatch(block); dm != nil {
				info.delegatesTo = dm[1]
			}
			seen := make(map[string]bool)
			for _, em := range cjsExportRe.FindAllStringSubmatch(block, -1) {
				name := em[1]
				if !seen[name] && !strings.HasPrefix(name, "__") {
					info.exports = append(info.exports, name)
					seen[name] = true
				}
			}
			cjsInfo[funcName] = info
		}
	}

	for urlPath, code := range depCache {
		codeStr := string(code)
		match := defaultRequireRe.FindStringSubmatch(codeStr)
		if match == nil {
			continue
		}
		funcName := match[1]

		var names []string
		if knownExports != nil {
			if exports, ok := knownExports[urlPath]; ok && len(exports) > 0 {
				names = exports
			}
		}
		if len(names) == 0 {
			names = resolveCJSExports(cjsInfo, funcName)
		}
		if len(names) == 0 {
			if pkg := packageNameFromPath(urlPath); pkg != "" {
				if len(configuredNamedExports[pkg]) > 0 {
					names = configuredNamedExports[pkg]
				} else if len(wellKnownCJSNamedExports[pkg]) > 0 {
					names = wellKnownCJSNamedExports[pkg]
				}
			}
		}
		names = filterExportNames(names)
		if len(names) == 0 {
			continue
		}
		sort.Strings(names)

		idx := strings.LastIndex(codeStr, "export default ")
		if idx < 0 {
			continue
		}
		rest := codeStr[idx+len("export default "):]
		semiIdx := strings.Index(rest, ";")
		if semiIdx < 0 {
			continue
		}
		expr := rest[:semiIdx]
		trailing := rest[semiIdx+1:]

		var sb strings.Builder
		sb.WriteString(codeStr[:idx])
		sb.WriteString("var __cjs_exports = ")
		sb.WriteString(expr)
		sb.WriteString(";\nexport default __cjs_exports;\n")
		writeNamedExports(&sb, names)
		sb.WriteString(trailing)

		depCache[urlPath] = []byte(sb.String())
	}
}

func filterExportNames(names []string) []string {
	var filtered []string
	for _, name := range names {
		if jsReservedWords[name] || strings.HasPrefix(name, "__") {
			continue
		}
		filtered = append(filtered, name)
	}
	return filtered
}

func writeNamedExports(sb *strings.Builder, names []string) {
	for _, name := range names {
		fmt.Fprintf(sb, "export const %s = __cjs_exports.%s;\n", name, name)
	}
}

// packageNameFromPath extracts an npm package name from an output path
// that still carries a "node_modules/" segment, handling scoped packages
// ("node_modules/@scope/name/...") the same way as a bare specifier.
func packageNameFromPath(path string) string {
	const marker = "node_modules/"
	idx := strings.LastIndex(path, marker)
	if idx < 0 {
		return ""
	}
	rest := path[idx+len(marker):]
	if strings.HasPrefix(rest, "@") {
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return rest
	}
	return strings.SplitN(rest, "/", 2)[0]
}

func resolveCJSExports(info map[string]*cjsModuleInfo, funcName string) []string {
	visited := make(map[string]bool)
	for {
		if visited[funcName] {
			return nil
		}
		visited[funcName] = true
		ci, ok := info[funcName]
		if !ok {
			return nil
		}
		if ci.delegatesTo != "" {
			funcName = ci.delegatesTo
			continue
		}
		return ci.exports
	}
}

// dynamicRequireRe matches __require("specifier") calls esbuild emits when
// CJS code require()s an external package.
var dynamicRequireRe = regexp.MustCompile(`__require\("([^"]+)"\)`)

// fixDynamicRequires replaces __require("pkg") with a static ESM import,
// since browsers cannot execute __require at runtime.
func fixDynamicRequires(depCache map[string][]byte) {
	for urlPath, code := range depCache {
		codeStr := string(code)
		matches := dynamicRequireRe.FindAllStringSubmatch(codeStr, -1)
		if len(matches) == 0 {
			continue
		}
		specifiers := make(map[string]string)
		counter := 0
		for _, m := range matches {
			spec := m[1]
			if _, ok := specifiers[spec]; !ok {
				specifiers[spec] = fmt.Sprintf("__ext_%d", counter)
				counter++
			}
		}
		var imports strings.Builder
		for spec, varName := range specifiers {
			fmt.Fprintf(&imports, "import %s from %q;\n", varName, spec)
		}
		result := dynamicRequireRe.ReplaceAllStringFunc(codeStr, func(match string) string {
			m := dynamicRequireRe.FindStringSubmatch(match)
			return specifiers[m[1]]
		})
		depCache[urlPath] = []byte(imports.String() + result)
	}
}

const nodeDetectScript = `
var e = JSON.parse(process.argv[1]);
var r = {};
if (typeof globalThis.window === 'undefined') globalThis.window = {};
if (typeof globalThis.document === 'undefined') globalThis.document = { createElement: function() { return {}; }, addEventListener: function() {} };
if (typeof globalThis.navigator === 'undefined') globalThis.navigator = { userAgent: '' };
if (typeof globalThis.self === 'undefined') globalThis.self = globalThis;
for (var k in e) {
  try {
    var m = require(e[k]);
    r[k] = Object.keys(m).filter(function(n) { return n !== '__esModule' && n !== 'default'; });
  } catch(ex) { r[k] = null; }
}
process.stdout.write(JSON.stringify(r));
`

// detectCJSExports runs Node.js to require() each entry point and
// enumerate its exports via Object.keys(). Returns nil, nil when the Node
// run fails or its output is not valid JSON, and the error when the entry
// list cannot be marshaled — callers fall back to regex/allow-list
// detection in every case.
func detectCJSExports(nodePath string, entryPoints map[string]string) (map[string][]string, error) {
	if len(entryPoints) == 0 {
		return nil, nil
	}
	entriesJSON, err := json.Marshal(entryPoints)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, nodePath, "-e", nodeDetectScript, string(entriesJSON))
	out, err := cmd.Output()
	if err != nil {
		return nil, nil
	}
	var result map[string][]string
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, nil
	}
	return result, nil
}

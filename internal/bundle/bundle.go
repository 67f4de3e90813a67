// Package bundle implements the Bundle Orchestrator (§4.6): one esbuild
// invocation per run, assembling the fixed 12-stage plugin chain, applying
// externalization, and producing the output-directory layout plus a
// dependency-stats report.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/mprinc/snowpack/internal/specifier"
)

// Loaders maps file extensions to esbuild loaders, used by Build and by
// the fetch-intercept stage's loader selection (loaderForExt).
var Loaders = map[string]api.Loader{
	".js":         api.LoaderJS,
	".jsx":        api.LoaderJSX,
	".ts":         api.LoaderTS,
	".tsx":        api.LoaderTSX,
	".json":       api.LoaderJSON,
	".css":        api.LoaderCSS,
	".module.css": api.LoaderLocalCSS,
	".mjs":        api.LoaderJS,
	".cjs":        api.LoaderJS,
	".md":         api.LoaderText,
	".woff":       api.LoaderFile,
	".woff2":      api.LoaderFile,
	".ttf":        api.LoaderFile,
	".eot":        api.LoaderFile,
	".svg":        api.LoaderFile,
	".png":        api.LoaderFile,
	".jpg":        api.LoaderFile,
	".gif":        api.LoaderFile,
}

// Target is the bundler's view of an install target: the original bare
// specifier (the import-map key, and the identifier source still imports
// by), a sanitized output name (the on-disk, collision-checked basename
// derived from it by the caller via specifier.Sanitize), the resolved
// entry file, and the shape data the install-target wrapper stage needs
// to decide whether named-export synthesis applies.
type Target struct {
	Specifier     string
	SanitizedName string
	EntryPath     string
	Named         []string
	All           bool
}

// Options configures one Build invocation, covering every §6
// installOptions.* field the orchestrator consumes plus the plugin-chain
// inputs derived upstream (aliases, externals, remote cache).
type Options struct {
	Targets         []Target
	Dest            string
	Env             map[string]string
	EnvFileDefines  map[string]string // pre-formatted "import.meta.env.KEY" defines from LoadEnvFiles (envfile.go)
	ExternalPackage []string
	SourceMap       bool
	Treeshake       bool
	NamedExports    map[string][]string
	Dedupe          []string
	UserPlugins     []api.Plugin
	AliasEntries    map[string]string // package-kind alias from -> to, build-time substitution
	RemoteCacheDir  string            // populated only when a remote manifest was declared
	ModulesDir      string            // project's top-level node_modules, for nested-install detection
	ExternalESMEnv  string            // env var name carrying the external-ESM exception list for stage 8
	NodePath        string            // optional; enables Node-based CJS export detection in stage 9
	Mode            string            // "development" or "production", drives stage 1 defaults
}

// Stats is the dependency-stats report surfaced on completion (§4.6 stage 10).
type Stats struct {
	Entries []DepStat
}

// DepStat records one bundled module's size and origin.
type DepStat struct {
	SpecifierOrPath string
	Bytes           int
	Origin          string // "local" for an entry's own output file, "package" for any other output
}

// Result is the §6 orchestrator result surface.
type Result struct {
	Success   bool
	HasError  bool
	ImportMap map[string]string
	Stats     Stats
	Errors    []error
}

// Error is the §7 BundlerError: the bundler threw with a file location.
type Error struct {
	File string
	Msg  string
}

func (e *Error) Error() string {
	hint := likelyMissingPluginHint(e.File)
	if hint != "" {
		return fmt.Sprintf("bundler error in %s: %s (%s)", e.File, e.Msg, hint)
	}
	return fmt.Sprintf("bundler error in %s: %s", e.File, e.Msg)
}

// UnresolvedModuleError is the §7 UnresolvedModule error: upgraded from
// warning to fatal by the unresolved-catcher stage.
type UnresolvedModuleError struct {
	Path string
}

func (e *UnresolvedModuleError) Error() string {
	return fmt.Sprintf("unresolved module: %s", normalizeSlashes(e.Path))
}

func likelyMissingPluginHint(file string) string {
	switch filepath.Ext(file) {
	case ".css":
		return "likely missing the CSS plugin"
	case ".json":
		return "likely missing the JSON loader"
	case ".svg", ".png", ".jpg", ".gif", ".woff", ".woff2":
		return "likely missing an asset loader"
	default:
		return ""
	}
}

func normalizeSlashes(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// Build runs the full §4.6 orchestration: removes and recreates Dest,
// assembles the 12-stage plugin chain in order, invokes esbuild once with
// every declared target as an entry point, and returns the result surface.
func Build(opts Options) Result {
	if err := os.RemoveAll(opts.Dest); err != nil {
		return Result{Success: false, HasError: true, Errors: []error{fmt.Errorf("clearing output dir: %w", err)}}
	}
	if err := os.MkdirAll(opts.Dest, 0o755); err != nil {
		return Result{Success: false, HasError: true, Errors: []error{fmt.Errorf("creating output dir: %w", err)}}
	}

	define := buildDefines(opts.Env, opts.Mode)
	for k, v := range opts.EnvFileDefines {
		if _, ok := define[k]; !ok {
			define[k] = v
		}
	}

	var circularSeen bool
	var errs []error
	importMap := make(map[string]string)
	var stats Stats

	entryPoints := make([]api.EntryPoint, 0, len(opts.Targets))
	byOutput := make(map[string]Target, len(opts.Targets))
	for _, t := range opts.Targets {
		entryPoints = append(entryPoints, api.EntryPoint{InputPath: t.EntryPath, OutputPath: t.SanitizedName})
		byOutput[t.SanitizedName] = t
	}

	plugins := []api.Plugin{
		envReplacementPlugin(define),
	}
	if opts.RemoteCacheDir != "" {
		plugins = append(plugins, remoteDepCachePlugin(opts.RemoteCacheDir))
	}
	plugins = append(plugins,
		aliasPlugin(opts.AliasEntries),
		fetchInterceptPlugin(opts.Dest),
		nodeResolvePlugin(opts.Dedupe),
		nestedNodeModulesAbsorptionPlugin(opts.ModulesDir, opts.ExternalPackage),
		cssImportPlugin(),
		commonJSExternalESMPlugin(opts.ExternalESMEnv),
		installTargetWrapperPlugin(byOutput, opts.NamedExports, opts.NodePath),
		depStatsCollectorPlugin(&stats),
	)
	plugins = append(plugins, opts.UserPlugins...)
	plugins = append(plugins, unresolvedCatcherPlugin(&errs))

	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		Bundle:              true,
		Write:               true,
		Outdir:              opts.Dest,
		Format:              api.FormatESModule,
		Platform:            api.PlatformBrowser,
		MainFields:          []string{"browser:module", "module", "browser", "main"},
		Sourcemap:           sourcemapSetting(opts.SourceMap),
		TreeShaking:         treeshakeSetting(opts.Treeshake),
		Define:              define,
		External:            opts.ExternalPackage,
		Loader:              Loaders,
		LogLevel:            api.LogLevelSilent,
		Plugins:             plugins,
	})

	for _, w := range result.Warnings {
		if strings.Contains(w.Text, "CIRCULAR") || strings.Contains(w.Text, "circular") {
			if circularSeen {
				continue
			}
			circularSeen = true
		}
	}

	for _, e := range result.Errors {
		file := ""
		if e.Location != nil {
			file = normalizeSlashes(e.Location.File)
		}
		errs = append(errs, &Error{File: file, Msg: e.Text})
	}

	for _, f := range result.OutputFiles {
		rel, relErr := filepath.Rel(opts.Dest, f.Path)
		if relErr != nil {
			rel = filepath.Base(f.Path)
		}
		rel = normalizeSlashes(rel)
		stats.Entries = append(stats.Entries, DepStat{SpecifierOrPath: rel, Bytes: len(f.Contents), Origin: statOrigin(rel, byOutput)})
		if t, ok := targetForOutputRel(rel, byOutput); ok {
			importMap[t.Specifier] = "./" + rel
		}
	}

	sort.Slice(stats.Entries, func(i, j int) bool { return stats.Entries[i].SpecifierOrPath < stats.Entries[j].SpecifierOrPath })

	addPrefixImportMapEntries(importMap, opts.Targets)

	hasError := len(errs) > 0
	if hasError {
		os.RemoveAll(opts.Dest)
		return Result{Success: false, HasError: true, Errors: errs}
	}
	return Result{Success: true, HasError: circularSeen, ImportMap: importMap, Stats: stats}
}

func sourcemapSetting(enabled bool) api.SourceMap {
	if enabled {
		return api.SourceMapLinked
	}
	return api.SourceMapNone
}

func treeshakeSetting(enabled bool) api.TreeShaking {
	if enabled {
		return api.TreeShakingTrue
	}
	return api.TreeShakingFalse
}

func statOrigin(rel string, targets map[string]Target) string {
	if strings.HasPrefix(rel, "common/") {
		return "package"
	}
	if _, ok := targetForOutputRel(rel, targets); ok {
		return "local"
	}
	return "package"
}

func targetForOutputRel(rel string, targets map[string]Target) (Target, bool) {
	base := strings.TrimSuffix(rel, filepath.Ext(rel))
	t, ok := targets[base]
	return t, ok
}

// addPrefixImportMapEntries emits one trailing-slash prefix entry per
// installed package (e.g. "react/": "./react/"), beyond the exact entries
// already present, so deep subpaths that were never individually
// resolved still fall through the browser's import-map prefix-matching
// rule onto the same relative base the package's own entries live under.
// Exact entries always win, so this never masks a real resolution.
func addPrefixImportMapEntries(importMap map[string]string, targets []Target) {
	seen := make(map[string]bool)
	for _, t := range targets {
		pkg := specifier.PackageName(t.Specifier)
		if seen[pkg] {
			continue
		}
		seen[pkg] = true
		key := pkg + "/"
		if _, exists := importMap[key]; exists {
			continue
		}
		importMap[key] = "./" + pkg + "/"
	}
}

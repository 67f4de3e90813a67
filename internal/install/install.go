// Package install implements the top-level orchestrator: the state
// machine that wires enumeration, loading, scanning, aggregation,
// resolution, and bundling into one run and produces the §6 result
// surface.
package install

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mprinc/snowpack/internal/aggregate"
	"github.com/mprinc/snowpack/internal/alias"
	"github.com/mprinc/snowpack/internal/bundle"
	"github.com/mprinc/snowpack/internal/config"
	"github.com/mprinc/snowpack/internal/enum"
	"github.com/mprinc/snowpack/internal/load"
	"github.com/mprinc/snowpack/internal/manifest"
	"github.com/mprinc/snowpack/internal/resolve"
	"github.com/mprinc/snowpack/internal/scan"
	"github.com/mprinc/snowpack/internal/specifier"
)

// externalESMEnvVar carries the externalESM exception list (§10.1/§11,
// stage 8) from Run to the commonJSExternalESMPlugin through the process
// environment, since esbuild plugin Setup funcs take no caller-supplied
// context beyond what's closed over at construction time.
const externalESMEnvVar = "SNOWPACK_EXTERNAL_ESM"

// State is one step of the §4.6 state machine: Idle -> Enumerating ->
// Scanning -> Aggregating -> Resolving -> Bundling -> Emitting ->
// (Succeeded | Failed).
type State int

const (
	StateIdle State = iota
	StateEnumerating
	StateScanning
	StateAggregating
	StateResolving
	StateBundling
	StateEmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateEnumerating:
		return "Enumerating"
	case StateScanning:
		return "Scanning"
	case StateAggregating:
		return "Aggregating"
	case StateResolving:
		return "Resolving"
	case StateBundling:
		return "Bundling"
	case StateEmitting:
		return "Emitting"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Result is the §6 "exit/result surface".
type Result struct {
	Success     bool
	HasError    bool
	ImportMap   map[string]string
	NewLockfile manifest.Manifest
	Stats       bundle.Stats
	FinalState  State
	Err         error
}

var logger = log.New(os.Stderr, "", log.LstdFlags)

// Run executes one full invocation against cfg, rooted at projectRoot.
// project root doubles as the node_modules lookup root
// (projectRoot/node_modules). When skipOnResolutionFailure is set, a
// ResolutionFailure for one specifier downgrades to a dropped target
// instead of aborting the run (§7).
func Run(cfg *config.Config, projectRoot string, skipOnResolutionFailure bool) Result {
	runID := uuid.NewString()
	log := func(format string, args ...interface{}) {
		logger.Printf("[%s] "+format, append([]interface{}{runID}, args...)...)
	}

	state := StateIdle
	fail := func(err error) Result {
		log("failed in state %s: %v", state, err)
		return Result{Success: false, HasError: true, FinalState: StateFailed, Err: err}
	}

	if _, err := os.Stat(filepath.Join(projectRoot, "node_modules")); os.IsNotExist(err) && len(cfg.WebDependencies) == 0 {
		return fail(&config.Error{Reason: "no node_modules directory and no remote manifest declared"})
	}

	state = StateEnumerating
	mounts := make([]enum.Mount, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		mounts = append(mounts, enum.Mount{Dir: m.Dir, URLPrefix: m.URLPrefix})
	}
	paths, err := enum.Enumerate(mounts, cfg.Exclude)
	if err != nil {
		return fail(fmt.Errorf("enumeration: %w", err))
	}
	log("enumerated %d files", len(paths))

	state = StateScanning
	scanned, err := loadAndScanAll(paths)
	if err != nil {
		return fail(err)
	}
	log("scanned %d targets from source", len(scanned))

	state = StateAggregating
	aliasEntries := alias.BuildMap(cfg.Alias)
	webDepKeys := make([]string, 0, len(cfg.WebDependencies))
	for k := range cfg.WebDependencies {
		webDepKeys = append(webDepKeys, k)
	}
	sort.Strings(webDepKeys)

	targets := aggregate.Aggregate(aggregate.Sources{
		Scanned:            scanned,
		KnownEntrypoints:   cfg.KnownEntrypoints,
		RemoteDependencies: webDepKeys,
	}, aliasEntries, cfg.InstallOptions.ExternalPackage)
	log("aggregated %d install targets", len(targets))

	state = StateResolving
	modulesDir := filepath.Join(projectRoot, "node_modules")
	lockfilePath := filepath.Join(cfg.InstallOptions.Dest, "import-map.json")
	existingLock, _ := manifest.Load(lockfilePath)

	bundleTargets := make([]bundle.Target, 0, len(targets))
	sanitizedOwners := make(map[string]string, len(targets))
	for _, t := range targets {
		if aggregate.IsExternal(t.Specifier, cfg.InstallOptions.ExternalPackage) {
			continue
		}
		if _, ok := existingLock.Imports[t.Specifier]; ok {
			continue
		}
		loc, err := resolve.Resolve(t.Specifier, projectRoot, modulesDir)
		if err != nil {
			if skipOnResolutionFailure {
				log("skipping %s: %v", t.Specifier, err)
				continue
			}
			return fail(fmt.Errorf("resolving %s: %w", t.Specifier, err))
		}
		if loc.Kind != resolve.KindJS {
			continue
		}
		sanitized := specifier.Sanitize(t.Specifier)
		if owner, collided := sanitizedOwners[sanitized]; collided {
			return fail(&SanitizedNameCollisionError{Name: sanitized, First: owner, Second: t.Specifier})
		}
		sanitizedOwners[sanitized] = t.Specifier
		bundleTargets = append(bundleTargets, bundle.Target{
			Specifier:     t.Specifier,
			SanitizedName: sanitized,
			EntryPath:     loc.Path,
			Named:         t.Named,
			All:           t.All,
		})
	}
	log("resolved %d bundler inputs", len(bundleTargets))

	var remoteCacheDir string
	if len(cfg.WebDependencies) > 0 {
		remoteCacheDir = filepath.Join(projectRoot, ".snowpack", "cache")
	}

	var envFileDefines map[string]string
	if cfg.InstallOptions.EnvFile != "" {
		defines, err := bundle.LoadEnvFiles(cfg.InstallOptions.EnvFile, cfg.InstallOptions.Mode, cfg.InstallOptions.EnvPrefix)
		if err != nil {
			log("loading .env files: %v", err)
		} else {
			envFileDefines = defines
		}
	}

	if len(cfg.InstallOptions.ExternalESM) > 0 {
		os.Setenv(externalESMEnvVar, strings.Join(cfg.InstallOptions.ExternalESM, ","))
	} else {
		os.Unsetenv(externalESMEnvVar)
	}

	var userPlugins []api.Plugin
	for _, name := range cfg.InstallOptions.Rollup.Plugins {
		plugin, ok := bundle.KnownUserPlugin(name)
		if !ok {
			log("rollup plugin %q has no native equivalent in this port; skipping", name)
			continue
		}
		userPlugins = append(userPlugins, plugin)
	}

	nodePath, _ := exec.LookPath("node")

	state = StateBundling
	result := bundle.Build(bundle.Options{
		Targets:         bundleTargets,
		Dest:            cfg.InstallOptions.Dest,
		Env:             cfg.InstallOptions.Env,
		EnvFileDefines:  envFileDefines,
		ExternalPackage: cfg.InstallOptions.ExternalPackage,
		SourceMap:       cfg.InstallOptions.SourceMap,
		Treeshake:       cfg.InstallOptions.Treeshake,
		NamedExports:    cfg.InstallOptions.NamedExports,
		Dedupe:          cfg.InstallOptions.Rollup.Dedupe,
		UserPlugins:     userPlugins,
		AliasEntries:    packageAliasMap(aliasEntries),
		RemoteCacheDir:  remoteCacheDir,
		ModulesDir:      modulesDir,
		ExternalESMEnv:  externalESMEnvVar,
		NodePath:        nodePath,
		Mode:            cfg.InstallOptions.Mode,
	})
	if !result.Success {
		var errs []error
		errs = append(errs, result.Errors...)
		if len(errs) == 0 {
			errs = append(errs, fmt.Errorf("bundling failed"))
		}
		return fail(errs[0])
	}

	state = StateEmitting
	merged := make(map[string]string, len(existingLock.Imports)+len(result.ImportMap))
	for k, v := range existingLock.Imports {
		merged[k] = v
	}
	for k, v := range result.ImportMap {
		merged[k] = v
	}
	newLock := manifest.New(merged)
	if err := manifest.Write(lockfilePath, newLock); err != nil {
		return fail(fmt.Errorf("writing lockfile: %w", err))
	}

	state = StateSucceeded
	log("succeeded: %d entries bundled", len(result.ImportMap))
	return Result{
		Success:     true,
		HasError:    result.HasError,
		ImportMap:   result.ImportMap,
		NewLockfile: newLock,
		Stats:       result.Stats,
		FinalState:  state,
	}
}

// loadAndScanAll loads and parses every enumerated source file
// concurrently (§5: "loading may proceed concurrently... parsing is
// CPU-bound and may be parallelized"), then merges the per-file target
// lists. A ParseFailure on any single file is fatal, naming the file.
func loadAndScanAll(paths []string) ([]specifier.Target, error) {
	results := make([][]specifier.Target, len(paths))
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			src, err := load.Load(p, func(msg string) { logger.Printf("warning: %s", msg) })
			if err != nil {
				return fmt.Errorf("loading %s: %w", p, err)
			}
			if src == nil {
				return nil
			}
			targets, err := scan.Scan(src)
			if err != nil {
				return &ParseFailureError{File: p, Err: err}
			}
			results[i] = targets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []specifier.Target
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// ParseFailureError is the §7 ParseFailure error.
type ParseFailureError struct {
	File string
	Err  error
}

func (e *ParseFailureError) Error() string {
	return fmt.Sprintf("parse failure in %s: %v", e.File, e.Err)
}

func (e *ParseFailureError) Unwrap() error { return e.Err }

// SanitizedNameCollisionError is the §3/§8 Testable Property 5 error: two
// distinct specifiers sanitized to the same output basename within one run.
type SanitizedNameCollisionError struct {
	Name   string
	First  string
	Second string
}

func (e *SanitizedNameCollisionError) Error() string {
	return fmt.Sprintf("sanitized output name collision: %q and %q both sanitize to %q", e.First, e.Second, e.Name)
}

func packageAliasMap(entries []alias.Entry) map[string]string {
	m := make(map[string]string)
	for _, e := range entries {
		if e.Kind == alias.KindPackage {
			m[e.From] = e.To
		}
	}
	return m
}

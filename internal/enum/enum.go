// Package enum implements the File Enumerator (§4.1): it walks mount
// roots, filters hidden paths, the implicit web_modules/ exclusion, and a
// configured exclusion glob list, and yields a deduplicated, first-seen-
// ordered list of candidate source files.
package enum

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Mount is a single disk-root -> URL-prefix mapping from the config's
// "mount" field.
type Mount struct {
	Dir       string
	URLPrefix string
}

// Enumerate walks every mount root and returns the union of candidate file
// paths across all of them, deduplicated while preserving first-seen
// order, per §4.1.
func Enumerate(mounts []Mount, excludes []string) ([]string, error) {
	seen := make(map[string]struct{})
	var ordered []string

	for _, m := range mounts {
		files, err := enumerateRoot(m.Dir, excludes)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			ordered = append(ordered, f)
		}
	}
	return ordered, nil
}

func enumerateRoot(root string, excludes []string) ([]string, error) {
	var files []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// A vanished or unreadable entry is not fatal to the whole walk;
			// skip it and continue enumerating the rest of the tree.
			return nil
		}

		name := info.Name()
		if name != "." && strings.HasPrefix(name, ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			if name == "web_modules" {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAnyExclude(path, root, excludes) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// matchesAnyExclude reports whether path matches any exclusion glob, tried
// both against the path relative to root and the absolute path, so globs
// written either way in config behave as expected.
func matchesAnyExclude(path, root string, excludes []string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	abs := filepath.ToSlash(path)

	for _, g := range excludes {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, abs); ok {
			return true
		}
	}
	return false
}

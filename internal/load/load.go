// Package load implements the Source Loader (§4.2): per-file extension
// dispatch into verbatim reads, <script>-block extraction, or skips.
package load

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Source is a loaded file ready for the Import Scanner.
type Source struct {
	Path      string
	Extension string
	Contents  string
}

var sourceExts = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".ts": true, ".tsx": true,
}

var scriptHostExts = map[string]bool{
	".html": true, ".vue": true, ".svelte": true,
}

// scriptBlockRe captures the body between an opening <script ...> tag and
// its matching </script>, case-insensitively, across multiple lines.
var scriptBlockRe = regexp.MustCompile(`(?is)<script[^>]*>(.*?)</script>`)

// Load reads path and classifies it per §4.2's extension table. It returns
// a nil Source (no error) when the file should be skipped: extensionless
// files (README, LICENSE) and every extension outside the two loadable
// groups; of those, only extensions with no recognized MIME type are
// reported via the warn callback.
func Load(path string, warn func(msg string)) (*Source, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if ext == "" {
		return nil, nil
	}

	switch {
	case sourceExts[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return &Source{Path: path, Extension: ext, Contents: string(data)}, nil

	case scriptHostExts[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return &Source{Path: path, Extension: ext, Contents: extractScriptBlocks(string(data))}, nil

	default:
		if mime.TypeByExtension(ext) == "" {
			if warn != nil {
				warn(fmt.Sprintf("ignoring %s: unrecognized extension %q", path, ext))
			}
			return nil, nil
		}
		return nil, nil
	}
}

// extractScriptBlocks concatenates the body of every <script>...</script>
// block in html, joined by newlines. An empty body contributes nothing.
func extractScriptBlocks(html string) string {
	matches := scriptBlockRe.FindAllStringSubmatch(html, -1)
	var bodies []string
	for _, m := range matches {
		body := strings.TrimSpace(m[1])
		if body == "" {
			continue
		}
		bodies = append(bodies, m[1])
	}
	return strings.Join(bodies, "\n")
}

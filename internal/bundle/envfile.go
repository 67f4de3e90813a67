package bundle

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFiles reads the Vite-style .env variant chain in priority order
// (.env < .env.local < .env.<mode> < .env.<mode>.local, later wins) and
// returns the subset of keys matching prefix as esbuild-ready "define"
// values: the raw string JSON-quoted for substitution into
// `import.meta.env.<KEY>` occurrences during plugin stage 1.
func LoadEnvFiles(basePath, mode, prefix string) (map[string]string, error) {
	variants := []string{
		basePath,
		basePath + ".local",
		basePath + "." + mode,
		basePath + "." + mode + ".local",
	}

	merged := make(map[string]string)
	for _, path := range variants {
		vars, err := godotenv.Read(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		for k, v := range vars {
			merged[k] = v
		}
	}

	result := make(map[string]string)
	for k, v := range merged {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		result["import.meta.env."+k] = jsonString(v)
	}
	return result, nil
}

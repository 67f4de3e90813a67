package bundle

import "regexp"

func regexpMustCompileFetch() *regexp.Regexp {
	return regexp.MustCompile(`fetch\(\s*["']([^"']+)["']\s*\)`)
}

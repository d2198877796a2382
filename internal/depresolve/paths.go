package depresolve

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
)

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnvVars substitutes ${NAME} occurrences with the named environment
// variable's value, leaving the pattern untouched when the variable is
// unset or empty.
func expandEnvVars(path string) string {
	if path == "" {
		return path
	}
	path = filepath.ToSlash(path)
	return envVarPattern.ReplaceAllStringFunc(path, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(name); val != "" {
			return filepath.ToSlash(val)
		}
		return match
	})
}

// pathToURI converts a filesystem path to a file:// URI.
func pathToURI(path string) string {
	slashed := filepath.ToSlash(path)
	if runtime.GOOS == "windows" && len(slashed) > 1 && slashed[1] == ':' {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

// normalizePath expands environment variables in path, resolves it
// relative to base if it isn't already absolute, and cleans the result.
func normalizePath(path, base string) string {
	expanded := expandEnvVars(path)
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(base, expanded)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return filepath.Clean(expanded)
	}
	return abs
}

// pathSeparator is the platform PATH-list separator used to accumulate
// native-library search directories.
func pathSeparator() string {
	if runtime.GOOS == "windows" {
		return ";"
	}
	return ":"
}

// mergeUniqueStrings concatenates the given slices, keeping only the first
// occurrence of each value and preserving order.
func mergeUniqueStrings(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, item := range list {
			if !seen[item] {
				seen[item] = true
				out = append(out, item)
			}
		}
	}
	return out
}

// cjpmConfigDir returns the root of the local cjpm package cache: the
// CJPM_CONFIG environment variable if set, otherwise ~/.cjpm.
func cjpmConfigDir() string {
	if dir := os.Getenv("CJPM_CONFIG"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cjpm"
	}
	return filepath.Join(home, ".cjpm")
}

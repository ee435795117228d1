// Package paths implements the PathResolver component: locating a
// binary on the search path, or classifying an already-absolute or
// relative-from-cwd path as-is. Grounded on the teacher's
// internal/pkg/util/paths resolution helpers and on honeycomb.cpp's
// find_binary.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/honeycomb-run/honeycomb/internal/herrors"
)

// DefaultPath is used when the process environment carries no PATH
// variable, mirroring honeycomb.cpp's DEFAULT_PATH fallback.
const DefaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Resolve locates name on the search path and returns its absolute
// path. If name begins with "/" or "./" it is returned unchanged
// without touching the filesystem, matching the data model's
// classification of commands. Otherwise PATH (or DefaultPath) is
// searched left to right and the first directory containing an
// executable "name" wins; ties are broken by search order.
func Resolve(name string) (string, error) {
	if isAbsOrRelative(name) {
		return name, nil
	}

	searchPath := os.Getenv("PATH")
	if searchPath == "" {
		searchPath = DefaultPath
	}

	for _, dir := range strings.Split(searchPath, ":") {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	return "", herrors.NotFound("Resolve", fmt.Errorf("%q not found on PATH", name))
}

func isAbsOrRelative(name string) bool {
	return strings.HasPrefix(name, "/") || strings.HasPrefix(name, "./")
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

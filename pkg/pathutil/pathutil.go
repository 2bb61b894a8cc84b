// Package pathutil locates the project root and rewrites paths relative
// to it. It exists so capability providers can record portable,
// project-relative paths in capture payloads instead of absolute ones.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// rootMarkers are files or directories whose presence identifies a
// project root, checked in order while walking up from the start
// directory.
var rootMarkers = []string{"go.mod", ".git", ".stasis.yaml"}

// ResolveRelative returns path rewritten relative to the enclosing
// project root. It never fails: if no root marker is found, the path
// does not exist, or any filesystem call errors, it falls back to the
// absolute form of the input (or the input itself as a last resort).
func ResolveRelative(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	root, ok := findRoot(filepath.Dir(abs))
	if !ok {
		return abs
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return abs
	}
	// A path that escapes the root is not project-relative; keep it
	// absolute so the payload is at least unambiguous.
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}
	return filepath.ToSlash(rel)
}

// findRoot walks up from dir looking for a root marker.
func findRoot(dir string) (string, bool) {
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Package saferoot resolves a mount destination against a container's
// rootfs one path component at a time, canonicalising every prefix that
// already exists so a symlink planted by the container image cannot walk
// the resolved path outside the rootfs: push one path component, and if
// the path built so far exists, replace it with its canonical
// (symlink-resolved) form before continuing.
package saferoot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscapesRoot is returned when the fully resolved destination does not
// lie within rootfs.
var ErrEscapesRoot = errors.New("mount destination escapes rootfs")

// Resolve returns the canonicalised, absolute path of destination (an
// OCI mount's container-relative or absolute path) joined under rootfs,
// walking one path component at a time and resolving symlinks in any
// prefix that already exists on disk. It returns ErrEscapesRoot if the
// final resolved path does not start with rootfs.
func Resolve(rootfs, destination string) (string, error) {
	rootfs = filepath.Clean(rootfs)
	rel := strings.TrimPrefix(destination, "/")
	joined := filepath.Join(rootfs, rel)

	components := strings.Split(joined, string(filepath.Separator))
	resolved := string(filepath.Separator)
	if filepath.IsAbs(joined) {
		components = components[1:]
	}

	for _, component := range components {
		if component == "" {
			continue
		}
		resolved = filepath.Join(resolved, component)
		if _, err := os.Lstat(resolved); err == nil {
			canon, err := filepath.EvalSymlinks(resolved)
			if err != nil {
				return "", fmt.Errorf("resolving mount path at %s: %w", resolved, err)
			}
			resolved = canon
		}
	}

	if resolved != rootfs && !strings.HasPrefix(resolved, rootfs+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s resolves to %s", ErrEscapesRoot, destination, resolved)
	}

	return resolved, nil
}

// Package kpath is a small path-manipulation collaborator treated as an
// external black box exposing normalize, is_prefix, and cwd_of_process.
// It is kept as a real, tested package — rather than a stub — because the
// container control API's policy check (start/resume must be run from
// inside the container's rootpath) depends on it, and because it is small
// enough to port in full from the reference implementation's path_util.h.
package kpath

import "strings"

// Normalize concatenates a base path with a (possibly relative, possibly
// absolute) subdirectory and collapses "." and ".." components, mirroring
// concatenate_path()+filter_path() from the reference implementation.
// basePath must already be absolute (start with "/").
func Normalize(basePath, subdirectory string) string {
	var dst string
	switch {
	case strings.HasPrefix(subdirectory, "/"):
		dst = subdirectory
	case basePath == "/":
		dst = "/" + subdirectory
	default:
		dst = basePath + "/" + subdirectory
	}
	return filterDotSegments(dst)
}

// filterDotSegments interprets "." and ".." path components in a single
// left-to-right pass, the same algorithm as the reference filter_path():
// a "/." segment is dropped, a "/.." segment rolls back to the previous
// "/" (but never past the leading one), and repeated slashes collapse.
func filterDotSegments(path string) string {
	b := []byte(path)
	n := len(b)
	idx1 := 0

	for idx2 := 0; idx2 < n; idx2++ {
		switch {
		case b[idx2] == '/' && idx2+1 < n && b[idx2+1] == '.' &&
			(idx2+2 >= n || b[idx2+2] == '/'):
			// "/." : skip the dot, keep nothing written for it.
			idx2++

		case b[idx2] == '/' && idx2+2 < n && b[idx2+1] == '.' && b[idx2+2] == '.':
			// "/.." : roll idx1 back to the previous path separator.
			for idx1 > 0 && b[idx1-1] != '/' {
				idx1--
			}
			if idx1 > 1 {
				idx1--
			}
			idx2 += 2

		case idx1 > 0 && b[idx1-1] == '/' && b[idx2] == '/':
			// Collapse a duplicate separator.

		default:
			b[idx1] = b[idx2]
			idx1++
		}
	}
	return string(b[:idx1])
}

// IsPrefix reports whether contPath is a path-prefix of fPath: every
// container-root policy check (cont start / cont resume) is "is the
// caller's cwd inside the container's rootpath", i.e. IsPrefix(cwd,
// rootpath). The container name uniqueness bug this port avoids — a
// bounded-length prefix compare that would let a
// container "f" match a lookup for "foo" — does not apply here: this is
// the deliberate prefix check used for path confinement, not name lookup.
func IsPrefix(fPath, contPath string) bool {
	if contPath == "/" {
		return true
	}
	idx := 0
	for idx < len(fPath) && idx < len(contPath) {
		if fPath[idx] != contPath[idx] {
			return false
		}
		idx++
	}
	if idx < len(contPath) {
		return false
	}
	return idx == len(fPath) || fPath[idx] == '/'
}

// Base extracts the trailing path component of fpath, the way
// extract_container_name() does when `cont create` is given a full
// directory path. ok is false if the component exceeds MaxNameLen bytes.
func Base(fpath string, maxLen int) (name string, ok bool) {
	idx := strings.LastIndexByte(fpath, '/')
	name = fpath[idx+1:]
	return name, len(name) <= maxLen
}

// CwdOf is the in-process stand-in for the reference kernel's
// getcwd()-by-inode-walk: here a process's working directory is tracked
// directly as a string field rather than reconstructed by walking ".."
// entries, since the inode/directory layer itself is treated as
// external-kernel territory here.
func CwdOf(cwd string) string { return cwd }

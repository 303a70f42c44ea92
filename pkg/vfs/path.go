package vfs

import (
	"fmt"
	"path"
	"strings"
)

// MaxPathLength is the maximum allowed path length.
const MaxPathLength = 4096

// Clean normalizes the path by removing unnecessary elements and
// resolving "." and ".." segments. It is similar to path.Clean but
// always returns an absolute slash-separated path, clamping ".."
// at the root. Use Normalize when escaping the root must be an error.
func Clean(p string) string {
	if p == "" {
		return "/"
	}

	// Ensure we use forward slashes
	p = strings.ReplaceAll(p, "\\", "/")

	if p[0] != '/' {
		p = "/" + p
	}

	components := strings.Split(p, "/")
	var result []string

	for _, comp := range components {
		switch comp {
		case "", ".":
			continue
		case "..":
			// Go up one level, but not past root
			if len(result) > 0 {
				result = result[:len(result)-1]
			}
		default:
			result = append(result, comp)
		}
	}

	if len(result) == 0 {
		return "/"
	}

	return "/" + strings.Join(result, "/")
}

// Normalize validates and canonicalizes a path for use in the VFS.
// The canonical form is absolute, slash-separated, with no empty,
// "." or ".." segments and no trailing slash (except the root "/").
// It returns ErrInvalidPath when the input contains a NUL byte,
// exceeds MaxPathLength, or uses ".." to escape above the root.
func Normalize(p string) (string, error) {
	if len(p) > MaxPathLength {
		return "", fmt.Errorf("%w: path exceeds %d bytes", ErrInvalidPath, MaxPathLength)
	}
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: path contains NUL byte", ErrInvalidPath)
	}

	p = strings.ReplaceAll(p, "\\", "/")

	var result []string
	for _, comp := range strings.Split(p, "/") {
		switch comp {
		case "", ".":
			continue
		case "..":
			if len(result) == 0 {
				return "", fmt.Errorf("%w: %q escapes above the root", ErrInvalidPath, p)
			}
			result = result[:len(result)-1]
		default:
			result = append(result, comp)
		}
	}

	if len(result) == 0 {
		return "/", nil
	}

	return "/" + strings.Join(result, "/"), nil
}

// Dir returns all but the last element of the path.
func Dir(p string) string {
	p = Clean(p)

	lastSlash := strings.LastIndex(p, "/")
	if lastSlash == 0 {
		return "/"
	}

	return p[:lastSlash]
}

// Base returns the last element of the path.
func Base(p string) string {
	p = Clean(p)
	if p == "/" {
		return "/"
	}

	return p[strings.LastIndex(p, "/")+1:]
}

// Split splits the path into directory and base components.
func Split(p string) (dir, base string) {
	p = Clean(p)

	lastSlash := strings.LastIndex(p, "/")
	if lastSlash == 0 {
		return "/", p[1:]
	}

	return p[:lastSlash], p[lastSlash+1:]
}

// Join joins any number of path elements into a single path.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

// Walk walks the file tree rooted at root, calling walkFn for each
// file or directory in the tree, including root. Children are visited
// in the order ReadDir returns them. Errors from Stat or ReadDir are
// passed to walkFn, which decides whether to abort the walk.
func Walk(fsys FileSystem, root string, walkFn func(path string, entry Entry, err error) error) error {
	root = Clean(root)

	entry, err := fsys.Stat(root)
	if err != nil {
		return walkFn(root, entry, err)
	}

	return walk(fsys, root, entry, walkFn)
}

// walk is the internal implementation of Walk.
func walk(fsys FileSystem, p string, entry Entry, walkFn func(path string, entry Entry, err error) error) error {
	if err := walkFn(p, entry, nil); err != nil {
		return err
	}
	if !entry.IsDir {
		return nil
	}

	children, err := fsys.ReadDir(p)
	if err != nil {
		return walkFn(p, entry, err)
	}

	for _, child := range children {
		if err := walk(fsys, Join(p, child.Name), child, walkFn); err != nil {
			return err
		}
	}

	return nil
}

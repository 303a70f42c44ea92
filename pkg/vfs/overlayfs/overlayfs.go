// Package overlayfs provides a union filesystem that composes other
// backends under path prefixes.
//
// Backends are registered with Mount and queried in reverse
// registration order: the most recently mounted backend wins, so
// later mounts shadow earlier ones at the same or overlapping prefix.
// A backend answering ErrNotFound is skipped and resolution falls
// through to the next matching mount; any other error propagates
// immediately, so real failures are never masked by fallback.
//
// The mount table is guarded internally: lookups snapshot it under a
// read lock, so a concurrent Mount or Unmount never reorders a
// resolution that is already in flight. The backends themselves must
// be safe for concurrent reads, which all backends in this module are.
package overlayfs

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"minifs/pkg/vfs"
)

// mount is a (prefix, backend) pair in the mount table.
type mount struct {
	prefix string
	fsys   vfs.FileSystem
}

// FS resolves logical paths across an ordered list of mounted
// backends. The zero value is unusable; create instances with New.
type FS struct {
	mu     sync.RWMutex
	mounts []mount
}

// New creates an overlay with an empty mount table. Every lookup
// fails with ErrNotFound until a backend is mounted.
func New() *FS {
	return &FS{}
}

// Mount registers fsys under the given path prefix, appending it to
// the mount table. Later mounts take priority over earlier ones
// during resolution. The prefix is normalized; Mount returns
// ErrInvalidPath when it cannot be.
func (ofs *FS) Mount(prefix string, fsys vfs.FileSystem) error {
	p, err := vfs.Normalize(prefix)
	if err != nil {
		return err
	}

	ofs.mu.Lock()
	defer ofs.mu.Unlock()

	ofs.mounts = append(ofs.mounts, mount{prefix: p, fsys: fsys})
	return nil
}

// Unmount removes the most recently added mount with exactly the
// given prefix (LIFO per prefix, so unmounting un-shadows
// predictably) and returns the detached backend. It returns false
// when no mount has that prefix.
func (ofs *FS) Unmount(prefix string) (vfs.FileSystem, bool) {
	p, err := vfs.Normalize(prefix)
	if err != nil {
		return nil, false
	}

	ofs.mu.Lock()
	defer ofs.mu.Unlock()

	for i := len(ofs.mounts) - 1; i >= 0; i-- {
		if ofs.mounts[i].prefix != p {
			continue
		}
		fsys := ofs.mounts[i].fsys
		ofs.mounts = append(ofs.mounts[:i], ofs.mounts[i+1:]...)
		return fsys, true
	}

	return nil, false
}

// Open implements vfs.FileSystem.Open.
func (ofs *FS) Open(path string) (vfs.File, error) {
	var file vfs.File
	err := ofs.resolve(path, func(fsys vfs.FileSystem, rel string) error {
		f, err := fsys.Open(rel)
		if err != nil {
			return err
		}
		file = f
		return nil
	})
	return file, err
}

// ReadDir implements vfs.FileSystem.ReadDir. The listing comes from
// the first mount that can satisfy it; listings are not merged across
// mounts.
func (ofs *FS) ReadDir(path string) ([]vfs.Entry, error) {
	var entries []vfs.Entry
	err := ofs.resolve(path, func(fsys vfs.FileSystem, rel string) error {
		e, err := fsys.ReadDir(rel)
		if err != nil {
			return err
		}
		entries = e
		return nil
	})
	return entries, err
}

// Stat implements vfs.FileSystem.Stat.
func (ofs *FS) Stat(path string) (vfs.Entry, error) {
	var entry vfs.Entry
	err := ofs.resolve(path, func(fsys vfs.FileSystem, rel string) error {
		e, err := fsys.Stat(rel)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	return entry, err
}

// resolve normalizes path and tries op against every matching mount,
// newest first. ErrNotFound falls through to the next match; any
// other error aborts resolution and propagates with the mount prefix
// attached for diagnostics.
func (ofs *FS) resolve(path string, op func(fsys vfs.FileSystem, rel string) error) error {
	p, err := vfs.Normalize(path)
	if err != nil {
		return err
	}

	for _, m := range ofs.snapshot() {
		rel, ok := trimPrefix(m.prefix, p)
		if !ok {
			continue
		}

		err := op(m.fsys, rel)
		if err == nil {
			return nil
		}
		if errors.Is(err, vfs.ErrNotFound) {
			continue
		}
		return fmt.Errorf("mount %s: %w", m.prefix, err)
	}

	return fmt.Errorf("%w: %s", vfs.ErrNotFound, p)
}

// snapshot returns the mount table in resolution order (newest
// first). The copy keeps the ordering stable for the whole lookup
// even when the table is mutated concurrently.
func (ofs *FS) snapshot() []mount {
	ofs.mu.RLock()
	defer ofs.mu.RUnlock()

	mounts := make([]mount, len(ofs.mounts))
	for i, m := range ofs.mounts {
		mounts[len(ofs.mounts)-1-i] = m
	}
	return mounts
}

// trimPrefix reports whether prefix is the path itself or a proper
// ancestor of it, and returns the backend-relative remainder. Both
// arguments are normalized absolute paths.
func trimPrefix(prefix, p string) (string, bool) {
	if prefix == "/" {
		return p, true
	}
	if p == prefix {
		return "/", true
	}
	if strings.HasPrefix(p, prefix+"/") {
		return p[len(prefix):], true
	}
	return "", false
}

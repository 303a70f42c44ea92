// Package memfs provides an in-memory filesystem implementation.
// It is useful for packaged defaults, testing, or as a lightweight
// fixture backend behind an overlay.
//
// A MemFS is populated with Touch and Mkdir and then served through
// the read-only vfs.FileSystem interface. Population and reads are
// safe to interleave from multiple goroutines; files returned by Open
// snapshot their content at open time and are seekable.
package memfs

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"minifs/pkg/vfs"
	"minifs/pkg/vfs/pathtree"
)

// content is the payload stored at file nodes. Directory nodes,
// explicit or implicit, carry no payload.
type content struct {
	data []byte
}

// FS represents an in-memory filesystem.
type FS struct {
	mu   sync.RWMutex
	root *pathtree.Node[content]
}

// New creates a new empty in-memory filesystem. The root directory
// "/" always exists.
func New() *FS {
	return &FS{root: pathtree.New[content]()}
}

// Touch stores data as the file at path, creating intermediate
// directories as needed and replacing any previous content. It
// returns ErrIsDirectory when path is already a directory and
// ErrNotDirectory when an ancestor of path is a file.
func (mfs *FS) Touch(path string, data []byte) error {
	p, err := vfs.Normalize(path)
	if err != nil {
		return err
	}
	if p == "/" {
		return fmt.Errorf("%w: /", vfs.ErrIsDirectory)
	}

	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	if err := mfs.checkAncestors(p); err != nil {
		return err
	}
	if node, ok := mfs.root.Lookup(rel(p)); ok && node.Value() == nil && node.HasChildren() {
		return fmt.Errorf("%w: %s", vfs.ErrIsDirectory, p)
	}

	mfs.root.Insert(rel(p), &content{data: data})
	return nil
}

// Mkdir creates an empty directory at path, along with any missing
// intermediate directories. Creating a directory that already exists
// is a no-op; creating one over an existing file returns
// ErrNotDirectory.
func (mfs *FS) Mkdir(path string) error {
	p, err := vfs.Normalize(path)
	if err != nil {
		return err
	}
	if p == "/" {
		return nil
	}

	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	if err := mfs.checkAncestors(p); err != nil {
		return err
	}
	if node, ok := mfs.root.Lookup(rel(p)); ok {
		if node.Value() != nil {
			return fmt.Errorf("%w: %s", vfs.ErrNotDirectory, p)
		}
		return nil
	}

	mfs.root.Insert(rel(p), nil)
	return nil
}

// Open implements vfs.FileSystem.Open.
func (mfs *FS) Open(path string) (vfs.File, error) {
	p, err := vfs.Normalize(path)
	if err != nil {
		return nil, err
	}

	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	node, ok := mfs.root.Lookup(rel(p))
	if !ok {
		return nil, fmt.Errorf("%w: %s", vfs.ErrNotFound, p)
	}
	if node.Value() == nil {
		return nil, fmt.Errorf("%w: %s", vfs.ErrIsDirectory, p)
	}

	data := node.Value().data
	return &memFile{
		entry:  fileEntry(p, data),
		reader: bytes.NewReader(data),
	}, nil
}

// ReadDir implements vfs.FileSystem.ReadDir.
func (mfs *FS) ReadDir(path string) ([]vfs.Entry, error) {
	p, err := vfs.Normalize(path)
	if err != nil {
		return nil, err
	}

	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	node, ok := mfs.root.Lookup(rel(p))
	if !ok {
		return nil, fmt.Errorf("%w: %s", vfs.ErrNotFound, p)
	}
	if node.Value() != nil {
		return nil, fmt.Errorf("%w: %s", vfs.ErrNotDirectory, p)
	}

	children := node.Children()
	result := make([]vfs.Entry, 0, len(children))
	for _, child := range children {
		result = append(result, childEntry(vfs.Join(p, child.Name), child.Node))
	}

	return result, nil
}

// Stat implements vfs.FileSystem.Stat.
func (mfs *FS) Stat(path string) (vfs.Entry, error) {
	p, err := vfs.Normalize(path)
	if err != nil {
		return vfs.Entry{}, err
	}

	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	node, ok := mfs.root.Lookup(rel(p))
	if !ok {
		return vfs.Entry{}, fmt.Errorf("%w: %s", vfs.ErrNotFound, p)
	}

	return childEntry(p, node), nil
}

// checkAncestors verifies that no ancestor of p is a regular file.
// Caller holds the lock.
func (mfs *FS) checkAncestors(p string) error {
	segs := strings.Split(rel(p), "/")
	for i := 1; i < len(segs); i++ {
		ancestor := strings.Join(segs[:i], "/")
		if node, ok := mfs.root.Lookup(ancestor); ok && node.Value() != nil {
			return fmt.Errorf("%w: /%s", vfs.ErrNotDirectory, ancestor)
		}
	}
	return nil
}

// rel strips the leading slash from a normalized path for pathtree
// lookups; the tree root is the path "".
func rel(p string) string {
	return strings.TrimPrefix(p, "/")
}

// fileEntry builds the entry for a file node.
func fileEntry(p string, data []byte) vfs.Entry {
	return vfs.Entry{
		Name: vfs.Base(p),
		Path: p,
		Size: int64(len(data)),
	}
}

// childEntry builds the entry for any tree node, synthesizing a
// directory entry for nodes without file content.
func childEntry(p string, node *pathtree.Node[content]) vfs.Entry {
	if value := node.Value(); value != nil {
		return fileEntry(p, value.data)
	}
	return vfs.Entry{
		Name:  vfs.Base(p),
		Path:  p,
		IsDir: true,
	}
}

// memFile serves a snapshot of a file's content. Reads never observe
// later Touch calls on the same path.
type memFile struct {
	mu     sync.Mutex
	entry  vfs.Entry
	reader *bytes.Reader
	closed bool
}

func (f *memFile) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, vfs.ErrClosedFile
	}
	return f.reader.Read(b)
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, vfs.ErrClosedFile
	}
	return f.reader.Seek(offset, whence)
}

func (f *memFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func (f *memFile) Stat() (vfs.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return vfs.Entry{}, vfs.ErrClosedFile
	}
	return f.entry, nil
}

// Package diskfs provides a disk-backed filesystem implementation.
// It maps every requested path onto a root directory on the host and
// delegates to the standard library's os functions, translating their
// errors into the vfs taxonomy.
//
// No state is cached: every call re-queries the OS, so results always
// reflect the current on-disk contents. Files returned by Open are
// seekable.
package diskfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"minifs/pkg/vfs"
)

// FS represents a disk-backed filesystem rooted at a host directory.
type FS struct {
	root string
}

// New creates a disk-backed filesystem rooted at the given directory.
func New(root string) *FS {
	return &FS{root: filepath.Clean(root)}
}

// Open implements vfs.FileSystem.Open.
func (dfs *FS) Open(path string) (vfs.File, error) {
	p, full, err := dfs.fullPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(full)
	if err != nil {
		return nil, classify(err, p)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, classify(err, p)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%w: %s", vfs.ErrIsDirectory, p)
	}

	return &diskFile{file: file, path: p}, nil
}

// ReadDir implements vfs.FileSystem.ReadDir.
func (dfs *FS) ReadDir(path string) ([]vfs.Entry, error) {
	p, full, err := dfs.fullPath(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		// os.ReadDir reports ENOTDIR in platform-specific ways;
		// re-stat to classify it portably.
		if info, statErr := os.Stat(full); statErr == nil && !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", vfs.ErrNotDirectory, p)
		}
		return nil, classify(err, p)
	}

	result := make([]vfs.Entry, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// The entry disappeared between listing and stat.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, classify(err, vfs.Join(p, entry.Name()))
		}
		result = append(result, entryFromInfo(vfs.Join(p, entry.Name()), info))
	}

	return result, nil
}

// Stat implements vfs.FileSystem.Stat.
func (dfs *FS) Stat(path string) (vfs.Entry, error) {
	p, full, err := dfs.fullPath(path)
	if err != nil {
		return vfs.Entry{}, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return vfs.Entry{}, classify(err, p)
	}

	return entryFromInfo(p, info), nil
}

// fullPath normalizes a VFS path and converts it to an absolute host
// filesystem path under the root.
func (dfs *FS) fullPath(path string) (normalized, full string, err error) {
	p, err := vfs.Normalize(path)
	if err != nil {
		return "", "", err
	}
	if p == "/" {
		return p, dfs.root, nil
	}
	return p, filepath.Join(dfs.root, filepath.FromSlash(p[1:])), nil
}

// classify translates an OS error into the vfs taxonomy.
func classify(err error, path string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", vfs.ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", vfs.ErrPermission, path)
	default:
		return fmt.Errorf("%w: %s: %v", vfs.ErrIO, path, err)
	}
}

// entryFromInfo converts an os.FileInfo to a vfs.Entry.
func entryFromInfo(path string, info os.FileInfo) vfs.Entry {
	entry := vfs.Entry{
		Name:  vfs.Base(path),
		Path:  path,
		IsDir: info.IsDir(),
	}
	if !entry.IsDir {
		entry.Size = info.Size()
	}
	return entry
}

// diskFile wraps an os.File to implement vfs.File.
type diskFile struct {
	file *os.File
	path string
}

func (f *diskFile) Read(b []byte) (int, error) {
	return f.file.Read(b)
}

func (f *diskFile) Seek(offset int64, whence int) (int64, error) {
	return f.file.Seek(offset, whence)
}

func (f *diskFile) Close() error {
	return f.file.Close()
}

func (f *diskFile) Stat() (vfs.Entry, error) {
	info, err := f.file.Stat()
	if err != nil {
		return vfs.Entry{}, classify(err, f.path)
	}
	return entryFromInfo(f.path, info), nil
}

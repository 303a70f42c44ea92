package vfs

import (
	"io"
)

// FileSystem is the main interface for virtual file system operations.
// It provides read-only access to files and directories across
// different storage backends.
//
// Implementations include DiskFS (disk-based), MemFS (in-memory),
// TarFS (tar archives, optionally compressed), ZipFS (zip archives),
// and OverlayFS (prefix-mounted union of other backends).
//
// Paths are slash-separated and absolute within the filesystem
// ("/a/b.txt"). Implementations normalize paths with Normalize and
// return ErrInvalidPath for paths that cannot be normalized.
type FileSystem interface {
	// Open opens the file at path for reading. It returns
	// ErrNotFound if no file exists at path and ErrIsDirectory if
	// path names a directory. Every call returns an independent
	// stream with its own cursor.
	Open(path string) (File, error)

	// ReadDir returns the direct (non-recursive) children of the
	// directory at path, sorted by name. It returns ErrNotFound if
	// path does not exist and ErrNotDirectory if path names a file.
	ReadDir(path string) ([]Entry, error)

	// Stat returns the entry describing the file or directory at
	// path. It returns ErrNotFound if path does not exist.
	Stat(path string) (Entry, error)
}

// File represents an open file and provides methods for reading and
// seeking within it. Whether Seek is supported depends on the
// backend: disk files and entries of uncompressed tar archives are
// seekable; streams from compressed tar archives and zip archives
// are sequential and return ErrNotSupported from Seek.
type File interface {
	// Read reads up to len(b) bytes from the file into b.
	io.Reader

	// Seek sets the offset for the next Read. offset is interpreted
	// relative to whence (io.SeekStart, io.SeekCurrent, io.SeekEnd).
	// Backends serving sequential streams return ErrNotSupported.
	Seek(offset int64, whence int) (int64, error)

	// Close closes the file, making it unusable for further I/O.
	Close() error

	// Stat returns the entry describing the file.
	Stat() (Entry, error)
}

// Entry describes a single node visible through the virtual
// filesystem. It is a plain value: two entries are equal when their
// fields are equal.
type Entry struct {
	Name  string // base name of the file or directory
	Path  string // normalized path within the filesystem
	Size  int64  // length in bytes for regular files, 0 for directories
	IsDir bool   // true if the entry is a directory
}

package vfs

import "errors"

// Error taxonomy for virtual filesystem operations. Backends classify
// raw OS and library errors into these sentinels at the boundary,
// wrapping them with fmt.Errorf("%w: ...") so the underlying cause
// stays visible. Callers test with errors.Is.
var (
	// ErrNotFound is returned when no entry exists at a path.
	ErrNotFound = errors.New("vfs: file not found")

	// ErrIsDirectory is returned when a file operation is applied
	// to a directory.
	ErrIsDirectory = errors.New("vfs: is a directory")

	// ErrNotDirectory is returned when a directory operation is
	// applied to a file.
	ErrNotDirectory = errors.New("vfs: not a directory")

	// ErrInvalidPath is returned when a path cannot be normalized,
	// for example when ".." segments escape above the root.
	ErrInvalidPath = errors.New("vfs: invalid path")

	// ErrPermission is returned when the host denies access to an
	// underlying file.
	ErrPermission = errors.New("vfs: permission denied")

	// ErrCorruptArchive is returned when structural parsing of an
	// archive fails: bad magic bytes, truncated headers, checksum
	// mismatches. The failure is terminal for that backend.
	ErrCorruptArchive = errors.New("vfs: corrupt archive")

	// ErrExtraction is returned when an archive entry's bytes end
	// short of the size recorded in its header, or fail to decode.
	ErrExtraction = errors.New("vfs: extraction failed")

	// ErrNotSupported is returned for operations a backend cannot
	// provide, such as seeking a compressed stream.
	ErrNotSupported = errors.New("vfs: operation not supported")

	// ErrClosedFile is returned when operations are performed on a
	// closed file.
	ErrClosedFile = errors.New("vfs: file is closed")

	// ErrIO is the catch-all for underlying I/O errors not
	// otherwise classified.
	ErrIO = errors.New("vfs: i/o failure")
)

// Package zipfs provides a read-only filesystem over a zip archive.
//
// The archive's central directory is parsed once at construction into
// an in-memory index; Open and ReadDir never re-parse the container.
// Zip requires a random-access byte source (the central directory
// lives at the end of the file), but the streams Open returns are
// sequential — entries are inflated on demand — and return
// ErrNotSupported from Seek. Directories the archive does not list
// explicitly are synthesized from the entry paths it does list.
package zipfs

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"strings"

	"minifs/pkg/vfs"
	"minifs/pkg/vfs/pathtree"
)

// record is the index payload for one archive entry. file is nil for
// directories stored explicitly in the archive.
type record struct {
	entry vfs.Entry
	file  *zip.File
}

// FS represents a filesystem backed by a zip archive. The index is
// immutable after construction and safe for concurrent reads.
type FS struct {
	root *pathtree.Node[record]
}

// New creates a filesystem over the zip archive read from src. It
// returns ErrCorruptArchive when the container cannot be parsed and
// ErrInvalidPath when an entry's name cannot be normalized.
func New(src io.ReaderAt, size int64) (*FS, error) {
	reader, err := zip.NewReader(src, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vfs.ErrCorruptArchive, err)
	}

	zfs := &FS{root: pathtree.New[record]()}

	for _, file := range reader.File {
		p, err := vfs.Normalize(file.Name)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", file.Name, err)
		}
		if p == "/" {
			continue
		}

		if strings.HasSuffix(file.Name, "/") || file.Mode().IsDir() {
			zfs.root.Insert(p[1:], &record{entry: vfs.Entry{
				Name:  vfs.Base(p),
				Path:  p,
				IsDir: true,
			}})
			continue
		}

		zfs.root.Insert(p[1:], &record{
			entry: vfs.Entry{
				Name: vfs.Base(p),
				Path: p,
				Size: int64(file.UncompressedSize64),
			},
			file: file,
		})
	}

	return zfs, nil
}

// Open implements vfs.FileSystem.Open.
func (zfs *FS) Open(path string) (vfs.File, error) {
	p, node, err := zfs.lookup(path)
	if err != nil {
		return nil, err
	}

	rec := node.Value()
	if rec == nil || rec.entry.IsDir {
		return nil, fmt.Errorf("%w: %s", vfs.ErrIsDirectory, p)
	}

	stream, err := rec.file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", vfs.ErrExtraction, p, err)
	}

	// The zip reader already limits the stream to the recorded size
	// and verifies the CRC once the last byte is read, so no extra
	// length guard is needed here.
	return &zipFile{
		entry:  rec.entry,
		reader: stream,
		closer: stream,
	}, nil
}

// ReadDir implements vfs.FileSystem.ReadDir.
func (zfs *FS) ReadDir(path string) ([]vfs.Entry, error) {
	p, node, err := zfs.lookup(path)
	if err != nil {
		return nil, err
	}

	if rec := node.Value(); rec != nil && !rec.entry.IsDir {
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
func (zfs *FS) Stat(path string) (vfs.Entry, error) {
	p, node, err := zfs.lookup(path)
	if err != nil {
		return vfs.Entry{}, err
	}
	return childEntry(p, node), nil
}

// lookup normalizes path and resolves its index node.
func (zfs *FS) lookup(path string) (string, *pathtree.Node[record], error) {
	p, err := vfs.Normalize(path)
	if err != nil {
		return "", nil, err
	}

	node, ok := zfs.root.Lookup(strings.TrimPrefix(p, "/"))
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", vfs.ErrNotFound, p)
	}

	return p, node, nil
}

// childEntry returns the entry stored at a node, synthesizing a
// directory entry for implicit intermediate nodes.
func childEntry(p string, node *pathtree.Node[record]) vfs.Entry {
	if rec := node.Value(); rec != nil {
		return rec.entry
	}
	return vfs.Entry{
		Name:  vfs.Base(p),
		Path:  p,
		IsDir: true,
	}
}

// zipFile serves a single inflated archive entry. The stream is
// sequential; decode and checksum failures surface as ErrExtraction.
type zipFile struct {
	entry  vfs.Entry
	reader io.Reader
	closer io.Closer
	closed bool
}

func (f *zipFile) Read(b []byte) (int, error) {
	if f.closed {
		return 0, vfs.ErrClosedFile
	}

	n, err := f.reader.Read(b)
	if err != nil && err != io.EOF && !isClassified(err) {
		// flate errors and zip.ErrChecksum indicate the entry's
		// bytes cannot be reproduced as recorded.
		return n, fmt.Errorf("%w: %s: %v", vfs.ErrExtraction, f.entry.Path, err)
	}
	return n, err
}

func (f *zipFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, vfs.ErrClosedFile
	}
	return 0, fmt.Errorf("%w: seek on zip entry stream", vfs.ErrNotSupported)
}

func (f *zipFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.closer.Close()
}

func (f *zipFile) Stat() (vfs.Entry, error) {
	if f.closed {
		return vfs.Entry{}, vfs.ErrClosedFile
	}
	return f.entry, nil
}

// isClassified reports whether err already carries a vfs sentinel.
func isClassified(err error) bool {
	for _, sentinel := range []error{
		vfs.ErrExtraction, vfs.ErrCorruptArchive, vfs.ErrNotFound,
		vfs.ErrIO, vfs.ErrPermission,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

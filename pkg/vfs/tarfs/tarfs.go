// Package tarfs provides a read-only filesystem over a tar archive,
// optionally compressed with gzip, zstd, or lz4.
//
// The archive is scanned once at construction into an in-memory index
// mapping each normalized entry path to its byte offset, so Open and
// ReadDir never re-parse the container. Directories the archive does
// not list explicitly are synthesized from the paths of the entries
// it does list.
//
// Files opened from an uncompressed archive are served by seekable
// readers over the entry's byte range. Compressed archives are not
// random-access: each Open re-runs decompression from the start of
// the stream and discards bytes up to the entry, trading repeated CPU
// work for holding no decompressed copy of the archive in memory.
// Those streams are sequential and return ErrNotSupported from Seek.
package tarfs

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"strings"

	"minifs/pkg/vfs"
	"minifs/pkg/vfs/pathtree"
)

// blockSize is the tar block granularity: headers, entry data and the
// end-of-archive marker all occupy whole 512-byte blocks.
const blockSize = 512

// blockAlign rounds n up to the next block boundary.
func blockAlign(n int64) int64 {
	return (n + blockSize - 1) &^ (blockSize - 1)
}

// record is the index payload for one archive entry: its metadata
// plus the locator needed to re-read its bytes. For uncompressed
// archives offset is the position within the archive file; for
// compressed archives it is the position within the decompressed
// stream.
type record struct {
	entry  vfs.Entry
	offset int64
}

// FS represents a filesystem backed by a tar archive. The index is
// immutable after construction and safe for concurrent reads.
type FS struct {
	src   io.ReaderAt
	size  int64
	codec Codec
	root  *pathtree.Node[record]
}

// New creates a filesystem over an uncompressed tar archive read from
// src. It returns ErrCorruptArchive when the container cannot be
// parsed and ErrInvalidPath when an entry's name cannot be normalized.
func New(src io.ReaderAt, size int64) (*FS, error) {
	return build(src, size, nil)
}

// NewCompressed creates a filesystem over a tar archive compressed
// with the given codec.
func NewCompressed(src io.ReaderAt, size int64, codec Codec) (*FS, error) {
	return build(src, size, codec)
}

// NewGzip creates a filesystem over a gzip-compressed tar archive.
func NewGzip(src io.ReaderAt, size int64) (*FS, error) {
	return build(src, size, Gzip)
}

// NewZstd creates a filesystem over a zstd-compressed tar archive.
func NewZstd(src io.ReaderAt, size int64) (*FS, error) {
	return build(src, size, Zstd)
}

// NewLZ4 creates a filesystem over an lz4-compressed tar archive.
func NewLZ4(src io.ReaderAt, size int64) (*FS, error) {
	return build(src, size, LZ4)
}

// build scans the archive once and constructs the index.
func build(src io.ReaderAt, size int64, codec Codec) (*FS, error) {
	tfs := &FS{
		src:   src,
		size:  size,
		codec: codec,
		root:  pathtree.New[record](),
	}

	stream, err := tfs.openStream()
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	counter := &countingReader{r: stream}
	reader := tar.NewReader(counter)

	var lastEnd int64
	for {
		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vfs.ErrCorruptArchive, err)
		}

		// The entry's data, if any, starts at counter.n and fills
		// whole blocks.
		if end := counter.n + blockAlign(header.Size); end > lastEnd {
			lastEnd = end
		}

		p, err := vfs.Normalize(header.Name)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", header.Name, err)
		}
		if p == "/" {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			tfs.root.Insert(p[1:], &record{entry: vfs.Entry{
				Name:  vfs.Base(p),
				Path:  p,
				IsDir: true,
			}})
		case tar.TypeReg:
			// counter.n is the position right after the header
			// blocks, which is where this entry's data starts.
			tfs.root.Insert(p[1:], &record{
				entry: vfs.Entry{
					Name: vfs.Base(p),
					Path: p,
					Size: header.Size,
				},
				offset: counter.n,
			})
		default:
			// Symlinks, devices and other special entries are
			// outside the read-only file/directory model.
		}
	}

	// tar.Next reports a clean EOF when truncation lands inside block
	// padding, silently dropping every later entry. Drain the stream
	// so counter.n holds its full length, then require room for the
	// two-block end-of-archive marker after the last entry.
	if _, err := io.Copy(io.Discard, counter); err != nil {
		return nil, fmt.Errorf("%w: %v", vfs.ErrCorruptArchive, err)
	}
	if counter.n < lastEnd+2*blockSize {
		return nil, fmt.Errorf("%w: archive truncated at %d bytes", vfs.ErrCorruptArchive, counter.n)
	}

	return tfs, nil
}

// Open implements vfs.FileSystem.Open.
func (tfs *FS) Open(path string) (vfs.File, error) {
	p, node, err := tfs.lookup(path)
	if err != nil {
		return nil, err
	}

	rec := node.Value()
	if rec == nil || rec.entry.IsDir {
		return nil, fmt.Errorf("%w: %s", vfs.ErrIsDirectory, p)
	}

	if tfs.codec == nil {
		if rec.offset+rec.entry.Size > tfs.size {
			return nil, fmt.Errorf("%w: %s: archive truncated", vfs.ErrExtraction, p)
		}
		section := io.NewSectionReader(tfs.src, rec.offset, rec.entry.Size)
		return &tarFile{entry: rec.entry, reader: section, seeker: section}, nil
	}

	stream, err := tfs.openStream()
	if err != nil {
		return nil, err
	}
	if _, err := io.CopyN(io.Discard, stream, rec.offset); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: %s: %v", vfs.ErrExtraction, p, err)
	}

	return &tarFile{
		entry:  rec.entry,
		reader: vfs.ExactReader(stream, rec.entry.Size),
		closer: stream,
	}, nil
}

// ReadDir implements vfs.FileSystem.ReadDir.
func (tfs *FS) ReadDir(path string) ([]vfs.Entry, error) {
	p, node, err := tfs.lookup(path)
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
func (tfs *FS) Stat(path string) (vfs.Entry, error) {
	p, node, err := tfs.lookup(path)
	if err != nil {
		return vfs.Entry{}, err
	}
	return childEntry(p, node), nil
}

// lookup normalizes path and resolves its index node.
func (tfs *FS) lookup(path string) (string, *pathtree.Node[record], error) {
	p, err := vfs.Normalize(path)
	if err != nil {
		return "", nil, err
	}

	node, ok := tfs.root.Lookup(strings.TrimPrefix(p, "/"))
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", vfs.ErrNotFound, p)
	}

	return p, node, nil
}

// openStream returns an independent reader over the archive bytes,
// decompressed when a codec is configured. Decompression header
// errors classify as ErrCorruptArchive.
func (tfs *FS) openStream() (io.ReadCloser, error) {
	section := io.NewSectionReader(tfs.src, 0, tfs.size)
	if tfs.codec == nil {
		return io.NopCloser(section), nil
	}

	stream, err := tfs.codec.NewReader(section)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", vfs.ErrCorruptArchive, tfs.codec.Name(), err)
	}
	return stream, nil
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

// countingReader tracks the number of bytes consumed from the
// underlying stream, which is how entry data offsets are recorded
// while the tar header walk advances.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}

// tarFile serves a single archive entry. seeker is nil for entries of
// compressed archives, which are sequential.
type tarFile struct {
	entry  vfs.Entry
	reader io.Reader
	seeker io.Seeker
	closer io.Closer
	closed bool
}

func (f *tarFile) Read(b []byte) (int, error) {
	if f.closed {
		return 0, vfs.ErrClosedFile
	}

	n, err := f.reader.Read(b)
	if err != nil && err != io.EOF && !isClassified(err) {
		// Mid-stream decoder failures mean the entry's bytes cannot
		// be reproduced as recorded.
		return n, fmt.Errorf("%w: %s: %v", vfs.ErrExtraction, f.entry.Path, err)
	}
	return n, err
}

func (f *tarFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, vfs.ErrClosedFile
	}
	if f.seeker == nil {
		return 0, fmt.Errorf("%w: seek on compressed archive stream", vfs.ErrNotSupported)
	}
	return f.seeker.Seek(offset, whence)
}

func (f *tarFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

func (f *tarFile) Stat() (vfs.Entry, error) {
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

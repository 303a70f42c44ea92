package tarfs

import (
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec decodes a compressed byte stream. Each call to NewReader must
// return an independent reader positioned at the start of the
// decompressed stream, so concurrent opens never share cursor state.
type Codec interface {
	// Name returns the codec's short name ("gzip", "zstd", "lz4").
	Name() string

	// NewReader wraps r in a decompressing reader. It returns an
	// error when the stream header is malformed.
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// Built-in codecs for the compressed tar container formats.
var (
	Gzip Codec = gzipCodec{}
	Zstd Codec = zstdCodec{}
	LZ4  Codec = lz4Codec{}
)

type gzipCodec struct{}

func (gzipCodec) Name() string { return "gzip" }

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	// IOReadCloser releases the decoder's goroutines on Close.
	return decoder.IOReadCloser(), nil
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

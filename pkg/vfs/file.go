package vfs

import (
	"fmt"
	"io"
)

// ExactReader returns a reader that yields exactly size bytes from r
// and then io.EOF. If r is exhausted before size bytes have been
// read, the next Read returns ErrExtraction: the underlying bytes are
// shorter than the size an archive header recorded for them.
//
// Archive backends wrap entry streams with ExactReader so integrity
// violations surface lazily during reads instead of being silently
// truncated.
func ExactReader(r io.Reader, size int64) io.Reader {
	return &exactReader{r: r, remaining: size}
}

type exactReader struct {
	r         io.Reader
	remaining int64
}

func (e *exactReader) Read(b []byte) (int, error) {
	if e.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(b)) > e.remaining {
		b = b[:e.remaining]
	}

	n, err := e.r.Read(b)
	e.remaining -= int64(n)

	if err == io.EOF && e.remaining > 0 {
		return n, fmt.Errorf("%w: stream ended %d bytes short", ErrExtraction, e.remaining)
	}
	if err == io.EOF && e.remaining == 0 {
		return n, io.EOF
	}

	return n, err
}

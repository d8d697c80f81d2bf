// Package compression wraps the stream codecs used for disk image archives
package compression

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Algorithm names a compression codec
type Algorithm string

const (
	// None stores data as is
	None Algorithm = "none"
	// GZIP uses compress/gzip
	GZIP Algorithm = "gzip"
	// XZ uses github.com/ulikunitz/xz
	XZ Algorithm = "xz"
	// BZIP2 uses github.com/dsnet/compress/bzip2
	BZIP2 Algorithm = "bzip2"
)

// ErrUnsupportedAlgorithm is returned for unknown codec names
var ErrUnsupportedAlgorithm = errors.New("unsupported compression algorithm")

// Algorithms lists every supported codec
var Algorithms = []Algorithm{None, GZIP, XZ, BZIP2}

// ParseAlgorithm converts a codec name into an Algorithm. An empty name
// selects None.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(None):
		return None, nil
	case string(GZIP), "gz":
		return GZIP, nil
	case string(XZ):
		return XZ, nil
	case string(BZIP2), "bz2":
		return BZIP2, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

// Extension returns the file name suffix for archives written with a
func (a Algorithm) Extension() string {
	switch a {
	case GZIP:
		return ".gz"
	case XZ:
		return ".xz"
	case BZIP2:
		return ".bz2"
	default:
		return ""
	}
}

// NewWriter returns a writer that compresses into w. Closing it flushes the
// codec but does not close w.
func NewWriter(a Algorithm, w io.Writer) (io.WriteCloser, error) {
	switch a {
	case None, "":
		return nopWriteCloser{w}, nil
	case GZIP:
		return newGZIPWriter(w)
	case XZ:
		return newXZWriter(w)
	case BZIP2:
		return newBZIP2Writer(w)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, a)
	}
}

// NewReader returns a reader that decompresses r
func NewReader(a Algorithm, r io.Reader) (io.ReadCloser, error) {
	switch a {
	case None, "":
		return io.NopCloser(r), nil
	case GZIP:
		return newGZIPReader(r)
	case XZ:
		return newXZReader(r)
	case BZIP2:
		return newBZIP2Reader(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, a)
	}
}

// Compress copies src into dst through the codec
func Compress(a Algorithm, dst io.Writer, src io.Reader) (int64, error) {
	w, err := NewWriter(a, dst)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(w, src)
	if err != nil {
		w.Close()
		return n, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("failed to compress data: %w", err)
	}
	return n, nil
}

// Extract copies the decompressed contents of src into dst
func Extract(a Algorithm, dst io.Writer, src io.Reader) (int64, error) {
	r, err := NewReader(a, src)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	n, err := io.Copy(dst, r)
	if err != nil {
		return n, fmt.Errorf("failed to decompress data: %w", err)
	}
	return n, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

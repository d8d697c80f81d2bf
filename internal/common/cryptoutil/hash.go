// Package cryptoutil provides digest helpers for verifying disk images
package cryptoutil

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Custom errors
var (
	ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")
	ErrChecksumMismatch     = errors.New("checksum mismatch")
)

// HashAlgorithm represents supported hash algorithms
type HashAlgorithm string

const (
	// SHA256 algorithm
	SHA256 HashAlgorithm = "sha256"

	// SHA512 algorithm
	SHA512 HashAlgorithm = "sha512"
)

// Hasher computes hex encoded digests
type Hasher interface {
	// Hash hashes the provided data
	Hash(data []byte) string

	// HashFile hashes the content of a file
	HashFile(path string) (string, error)

	// HashReader hashes data from a reader
	HashReader(reader io.Reader) (string, error)

	// NewHashWriter creates a writer for streaming hash calculation
	NewHashWriter() *HashWriter

	// Verify checks an expected digest against the one computed from reader
	Verify(reader io.Reader, expected string) error
}

type hasherImpl struct {
	algorithm HashAlgorithm
	newHash   func() hash.Hash
}

// NewHasher creates a new Hasher for the specified algorithm
func NewHasher(algorithm HashAlgorithm) (Hasher, error) {
	var newHashFunc func() hash.Hash

	switch HashAlgorithm(strings.ToLower(string(algorithm))) {
	case SHA256:
		newHashFunc = sha256.New
	case SHA512:
		newHashFunc = sha512.New
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedAlgorithm, algorithm)
	}

	return &hasherImpl{algorithm: algorithm, newHash: newHashFunc}, nil
}

func (h *hasherImpl) Hash(data []byte) string {
	hasher := h.newHash()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

func (h *hasherImpl) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return h.HashReader(file)
}

func (h *hasherImpl) HashReader(reader io.Reader) (string, error) {
	hasher := h.newHash()
	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("hash operation failed: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (h *hasherImpl) NewHashWriter() *HashWriter {
	return &HashWriter{hash: h.newHash()}
}

func (h *hasherImpl) Verify(reader io.Reader, expected string) error {
	actual, err := h.HashReader(reader)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w: %s digest %s, expected %s", ErrChecksumMismatch, h.algorithm, actual, expected)
	}
	return nil
}

// HashWriter accumulates a digest of everything written to it
type HashWriter struct {
	hash    hash.Hash
	written int64
}

// Write implements io.Writer
func (w *HashWriter) Write(p []byte) (int, error) {
	n, err := w.hash.Write(p)
	w.written += int64(n)
	return n, err
}

// Sum returns the hex encoded digest of the data written so far
func (w *HashWriter) Sum() string {
	return hex.EncodeToString(w.hash.Sum(nil))
}

// Written returns the number of bytes written
func (w *HashWriter) Written() int64 {
	return w.written
}

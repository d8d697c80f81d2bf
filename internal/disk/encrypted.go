package disk

import (
	"crypto/aes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/xts"
)

// ErrInvalidKey is returned for keys that are not a valid AES-XTS key
var ErrInvalidKey = errors.New("AES-XTS key must be 256 or 512 bits (two AES keys)")

// EncryptedDisk encrypts every block of an underlying Disk with AES-XTS.
// The block number is the XTS sector number, so identical plaintext blocks
// at different addresses encrypt differently.
type EncryptedDisk struct {
	Disk
	cipher *xts.Cipher
	buf    []byte
}

// NewEncrypted wraps d so that blocks are stored encrypted with key.
func NewEncrypted(d Disk, key []byte) (*EncryptedDisk, error) {
	if len(key) != 32 && len(key) != 64 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}

	c, err := xts.NewCipher(aes.NewCipher, key)
	if err != nil {
		return nil, fmt.Errorf("creating XTS cipher: %w", err)
	}

	return &EncryptedDisk{Disk: d, cipher: c, buf: make([]byte, BlockSize)}, nil
}

// ParseKey decodes a hex encoded AES-XTS key
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != 32 && len(key) != 64 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}
	return key, nil
}

// ReadBlock reads and decrypts block b into p
func (d *EncryptedDisk) ReadBlock(b uint32, p []byte) error {
	if err := d.Disk.ReadBlock(b, d.buf); err != nil {
		return err
	}
	if len(p) != BlockSize {
		return fmt.Errorf("%w: %w: got %d bytes", ErrDevice, ErrShortBuffer, len(p))
	}
	d.cipher.Decrypt(p, d.buf, uint64(b))
	return nil
}

// WriteBlock encrypts p and writes it to block b
func (d *EncryptedDisk) WriteBlock(b uint32, p []byte) error {
	if len(p) != BlockSize {
		return fmt.Errorf("%w: %w: got %d bytes", ErrDevice, ErrShortBuffer, len(p))
	}
	d.cipher.Encrypt(d.buf, p, uint64(b))
	return d.Disk.WriteBlock(b, d.buf)
}

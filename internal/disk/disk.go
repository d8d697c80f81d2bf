// Package disk emulates a fixed-size block device backed by a regular file.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// BlockSize is the size in bytes of every block transferred by a Disk.
const BlockSize = 4096

// MinBlocks is the smallest device that can hold a superblock, an inode
// block and a data block.
const MinBlocks = 3

// Block device errors
var (
	ErrDevice       = errors.New("disk I/O error")
	ErrInvalidBlock = errors.New("block number out of range")
	ErrShortBuffer  = errors.New("buffer is not exactly one block")
	ErrTooSmall     = errors.New("disk must have at least 3 blocks")
	ErrClosed       = errors.New("disk is closed")
)

// Stats holds the cumulative number of block transfers performed by a Disk.
type Stats struct {
	Reads  uint64 `json:"reads" yaml:"reads"`
	Writes uint64 `json:"writes" yaml:"writes"`
}

// Disk is a device that transfers fixed-size blocks.
type Disk interface {
	// Blocks returns the number of blocks on the device
	Blocks() uint32

	// ReadBlock reads block b into p, which must be BlockSize bytes long
	ReadBlock(b uint32, p []byte) error

	// WriteBlock writes p, which must be BlockSize bytes long, to block b
	WriteBlock(b uint32, p []byte) error

	// Stats returns the read and write counters
	Stats() Stats

	// Close releases the device
	Close() error
}

// FileDisk implements Disk backed by a file (e.g. a raw image).
type FileDisk struct {
	f      *os.File
	path   string
	blocks uint32
	stats  Stats
}

// Open creates or opens the image at path and sizes it to hold blocks blocks.
func Open(path string, blocks uint32) (*FileDisk, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrDevice)
	}
	if blocks < MinBlocks {
		return nil, fmt.Errorf("opening %s with %d blocks: %w", path, blocks, ErrTooSmall)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrDevice, path, err)
	}

	if err := f.Truncate(int64(blocks) * BlockSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: truncating %s: %v", ErrDevice, path, err)
	}

	return &FileDisk{f: f, path: path, blocks: blocks}, nil
}

// OpenExisting opens an image without resizing it; the block count is
// derived from the file size.
func OpenExisting(path string) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrDevice, path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrDevice, path, err)
	}

	blocks := stat.Size() / BlockSize
	if blocks < MinBlocks {
		f.Close()
		return nil, fmt.Errorf("opening %s (%d bytes): %w", path, stat.Size(), ErrTooSmall)
	}

	return &FileDisk{f: f, path: path, blocks: uint32(blocks)}, nil
}

// Path returns the backing file path
func (d *FileDisk) Path() string {
	return d.path
}

// Blocks returns the number of blocks on the device
func (d *FileDisk) Blocks() uint32 {
	return d.blocks
}

// ReadBlock reads a single block
func (d *FileDisk) ReadBlock(b uint32, p []byte) error {
	if err := d.check(b, p); err != nil {
		return err
	}
	if _, err := d.f.ReadAt(p, int64(b)*BlockSize); err != nil && err != io.EOF {
		return fmt.Errorf("%w: reading block %d: %v", ErrDevice, b, err)
	}
	d.stats.Reads++
	return nil
}

// WriteBlock writes a single block
func (d *FileDisk) WriteBlock(b uint32, p []byte) error {
	if err := d.check(b, p); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(p, int64(b)*BlockSize); err != nil {
		return fmt.Errorf("%w: writing block %d: %v", ErrDevice, b, err)
	}
	d.stats.Writes++
	return nil
}

// Stats returns the read and write counters
func (d *FileDisk) Stats() Stats {
	return d.stats
}

// Close closes the underlying file
func (d *FileDisk) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	if err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrDevice, d.path, err)
	}
	return nil
}

func (d *FileDisk) check(b uint32, p []byte) error {
	if d.f == nil {
		return fmt.Errorf("%w: %w", ErrDevice, ErrClosed)
	}
	if b >= d.blocks {
		return fmt.Errorf("%w: %w: %d >= %d", ErrDevice, ErrInvalidBlock, b, d.blocks)
	}
	if len(p) != BlockSize {
		return fmt.Errorf("%w: %w: got %d bytes", ErrDevice, ErrShortBuffer, len(p))
	}
	return nil
}

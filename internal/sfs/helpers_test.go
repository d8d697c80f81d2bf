package sfs

import (
	"fmt"
	"testing"

	"github.com/deploymenttheory/go-simplefs/internal/disk"
	"go.uber.org/zap/zaptest"
)

// memDisk is an in-memory disk.Disk that can inject failures on chosen blocks
type memDisk struct {
	data      [][]byte
	stats     disk.Stats
	failRead  map[uint32]bool
	failWrite map[uint32]bool
}

func newMemDisk(blocks uint32) *memDisk {
	d := &memDisk{
		data:      make([][]byte, blocks),
		failRead:  map[uint32]bool{},
		failWrite: map[uint32]bool{},
	}
	for i := range d.data {
		d.data[i] = make([]byte, BlockSize)
	}
	return d
}

func (d *memDisk) Blocks() uint32 { return uint32(len(d.data)) }

func (d *memDisk) check(b uint32, p []byte) error {
	if int(b) >= len(d.data) {
		return fmt.Errorf("%w: %w", disk.ErrDevice, disk.ErrInvalidBlock)
	}
	if len(p) != BlockSize {
		return fmt.Errorf("%w: %w", disk.ErrDevice, disk.ErrShortBuffer)
	}
	return nil
}

func (d *memDisk) ReadBlock(b uint32, p []byte) error {
	if err := d.check(b, p); err != nil {
		return err
	}
	if d.failRead[b] {
		return fmt.Errorf("%w: injected read failure on block %d", disk.ErrDevice, b)
	}
	copy(p, d.data[b])
	d.stats.Reads++
	return nil
}

func (d *memDisk) WriteBlock(b uint32, p []byte) error {
	if err := d.check(b, p); err != nil {
		return err
	}
	if d.failWrite[b] {
		return fmt.Errorf("%w: injected write failure on block %d", disk.ErrDevice, b)
	}
	copy(d.data[b], p)
	d.stats.Writes++
	return nil
}

func (d *memDisk) Stats() disk.Stats { return d.stats }

func (d *memDisk) Close() error { return nil }

// newMounted formats and mounts a fresh in-memory disk
func newMounted(t *testing.T, blocks uint32) (*FileSystem, *memDisk) {
	t.Helper()
	d := newMemDisk(blocks)
	fs := New(WithLogger(zaptest.NewLogger(t).Sugar()))
	if err := fs.Format(d); err != nil {
		t.Fatalf("Format(%d blocks) failed: %v", blocks, err)
	}
	if err := fs.Mount(d); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	return fs, d
}

// pattern returns n bytes that differ from block to block
func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + i/BlockSize)
	}
	return p
}

// remount unmounts fs and mounts d again on a fresh session
func remount(t *testing.T, fs *FileSystem, d disk.Disk) *FileSystem {
	t.Helper()
	fs.Unmount()
	fresh := New(WithLogger(zaptest.NewLogger(t).Sugar()))
	if err := fresh.Mount(d); err != nil {
		t.Fatalf("remount failed: %v", err)
	}
	return fresh
}

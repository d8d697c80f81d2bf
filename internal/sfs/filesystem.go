// Package sfs implements SimpleFS, an indexed-allocation file system on top
// of a block device.
//
// Block 0 holds the superblock, the following tenth of the disk holds the
// inode table and the remaining blocks hold file data and indirect pointer
// blocks. Each inode addresses PointersPerInode blocks directly and up to
// PointersPerBlock more through a single indirect block. Free space is not
// persisted: it is recomputed from the inode table every time the file system
// is mounted.
//
// A FileSystem is not safe for concurrent use.
package sfs

import (
	"fmt"

	"github.com/deploymenttheory/go-simplefs/internal/disk"
	"go.uber.org/zap"
)

// FileSystem is a mount session. The zero value is not usable; call New.
type FileSystem struct {
	disk  disk.Disk
	super SuperBlock
	free  *freeMap
	log   *zap.SugaredLogger
}

// Option configures a FileSystem
type Option func(*FileSystem)

// WithLogger sets the logger used to report failures
func WithLogger(l *zap.SugaredLogger) Option {
	return func(fs *FileSystem) {
		if l != nil {
			fs.log = l
		}
	}
}

// New returns an unmounted file system session
func New(opts ...Option) *FileSystem {
	fs := &FileSystem{log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Mounted reports whether a disk is attached
func (fs *FileSystem) Mounted() bool {
	return fs.disk != nil
}

// SuperBlock returns the cached superblock of the mounted disk
func (fs *FileSystem) SuperBlock() SuperBlock {
	return fs.super
}

// FreeBlocks returns the number of unallocated blocks
func (fs *FileSystem) FreeBlocks() int {
	if fs.free == nil {
		return 0
	}
	return fs.free.freeCount()
}

// Format writes a new superblock to d and clears every other block.
// A mounted session cannot format.
func (fs *FileSystem) Format(d disk.Disk) error {
	if fs.Mounted() {
		return NewFSError(ErrAlreadyMounted, "format", "", "unmount before formatting")
	}
	if d.Blocks() < disk.MinBlocks {
		return NewFSError(ErrDiskTooSmall, "format", "", fmt.Sprintf("%d blocks", d.Blocks()))
	}

	sb := NewSuperBlock(d.Blocks())
	data, err := EncodeSuperBlock(sb)
	if err != nil {
		return NewFSError(err, "format", "superblock", "")
	}
	if err := d.WriteBlock(superBlockNumber, data); err != nil {
		fs.log.Warnw("Failed to write superblock", "error", err)
		return NewFSError(err, "format", "superblock", "")
	}

	zeros := make([]byte, BlockSize)
	for b := uint32(1); b < sb.Blocks; b++ {
		if err := d.WriteBlock(b, zeros); err != nil {
			fs.log.Warnw("Failed to clear block during format", "block", b, "error", err)
			return NewFSError(err, "format", blockObject(b), "")
		}
	}

	fs.log.Debugw("Formatted disk",
		"blocks", sb.Blocks,
		"inode_blocks", sb.InodeBlocks,
		"inodes", sb.Inodes,
	)
	return nil
}

// Mount validates the superblock of d, attaches it and rebuilds the free
// block map. On failure the session stays unmounted.
func (fs *FileSystem) Mount(d disk.Disk) error {
	if fs.Mounted() {
		return NewFSError(ErrAlreadyMounted, "mount", "", "")
	}

	sb, err := ReadSuperBlock(d)
	if err != nil {
		return NewFSError(err, "mount", "superblock", "")
	}
	if err := sb.Validate(); err != nil {
		fs.log.Debugw("Rejected superblock", "error", err)
		return err
	}
	if sb.Blocks > d.Blocks() {
		return NewFSError(ErrInvalidSuperblock, "mount", "superblock",
			fmt.Sprintf("superblock claims %d blocks, disk has %d", sb.Blocks, d.Blocks()))
	}

	free, err := scanFreeMap(d, sb)
	if err != nil {
		return NewFSError(err, "mount", "", "rebuilding free block map")
	}

	fs.disk = d
	fs.super = sb
	fs.free = free

	fs.log.Debugw("Mounted disk",
		"blocks", sb.Blocks,
		"inodes", sb.Inodes,
		"free_blocks", free.freeCount(),
	)
	return nil
}

// Unmount detaches the disk and discards the free block map. It is safe to
// call on an unmounted session.
func (fs *FileSystem) Unmount() {
	fs.disk = nil
	fs.free = nil
	fs.super = SuperBlock{}
}

// ReadSuperBlock reads and decodes block 0 of d without validating it
func ReadSuperBlock(d disk.Disk) (SuperBlock, error) {
	buf := make([]byte, BlockSize)
	if err := d.ReadBlock(superBlockNumber, buf); err != nil {
		return SuperBlock{}, err
	}
	return DecodeSuperBlock(buf)
}

// scanFreeMap marks every block reachable from a valid inode as used
func scanFreeMap(d disk.Disk, sb SuperBlock) (*freeMap, error) {
	free := newFreeMap(sb)
	buf := make([]byte, BlockSize)

	for tb := uint32(1); tb <= sb.InodeBlocks; tb++ {
		if err := d.ReadBlock(tb, buf); err != nil {
			return nil, err
		}
		table, err := DecodeInodeTable(buf)
		if err != nil {
			return nil, err
		}

		for slot := range table {
			inode := &table[slot]
			if !inode.IsValid() {
				continue
			}
			n := (tb-1)*InodesPerBlock + uint32(slot)

			for _, b := range inode.Direct {
				if err := reserveReferenced(free, sb, n, b); err != nil {
					return nil, err
				}
			}

			if inode.Indirect == noBlock {
				continue
			}
			if err := reserveReferenced(free, sb, n, inode.Indirect); err != nil {
				return nil, err
			}

			if err := d.ReadBlock(inode.Indirect, buf); err != nil {
				return nil, err
			}
			pointers, err := DecodePointers(buf)
			if err != nil {
				return nil, err
			}
			for _, b := range pointers {
				if err := reserveReferenced(free, sb, n, b); err != nil {
					return nil, err
				}
			}
		}
	}
	return free, nil
}

func reserveReferenced(free *freeMap, sb SuperBlock, n, b uint32) error {
	if b == noBlock {
		return nil
	}
	if b < sb.FirstDataBlock() || b >= sb.Blocks {
		return NewFSError(ErrCorruptInode, "mount", inodeObject(n), blockObject(b))
	}
	free.reserve(b)
	return nil
}

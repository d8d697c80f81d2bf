package sfs

import (
	"bytes"
	"fmt"

	"github.com/deploymenttheory/go-simplefs/internal/disk"
)

// On-disk geometry
const (
	BlockSize        = disk.BlockSize
	MagicNumber      = 0xf0f03410
	InodeSize        = 32
	InodesPerBlock   = BlockSize / InodeSize
	PointersPerInode = 5
	PointersPerBlock = BlockSize / 4

	// MaxFileBlocks is the number of data blocks addressable by one inode
	MaxFileBlocks = PointersPerInode + PointersPerBlock
	// MaxFileSize is the largest file size in bytes
	MaxFileSize = MaxFileBlocks * BlockSize

	superBlockNumber = 0
	superBlockSize   = 16
)

// SuperBlock holds file system wide metadata stored in block 0
type SuperBlock struct {
	MagicNumber uint32 `json:"magic_number" yaml:"magic_number" plist:"magic_number"`
	Blocks      uint32 `json:"blocks" yaml:"blocks" plist:"blocks"`
	InodeBlocks uint32 `json:"inode_blocks" yaml:"inode_blocks" plist:"inode_blocks"`
	Inodes      uint32 `json:"inodes" yaml:"inodes" plist:"inodes"`
}

// NewSuperBlock computes the layout of a file system spanning blocks blocks.
// One block in ten, rounded up, is reserved for the inode table.
func NewSuperBlock(blocks uint32) SuperBlock {
	inodeBlocks := (blocks + 9) / 10
	return SuperBlock{
		MagicNumber: MagicNumber,
		Blocks:      blocks,
		InodeBlocks: inodeBlocks,
		Inodes:      inodeBlocks * InodesPerBlock,
	}
}

// Validate checks the magic number and the consistency of the counts
func (sb SuperBlock) Validate() error {
	if sb.MagicNumber != MagicNumber {
		return NewFSError(ErrInvalidSuperblock, "validate", "superblock", fmt.Sprintf("bad magic %#x", sb.MagicNumber))
	}
	if sb.InodeBlocks < 1 || sb.Blocks < disk.MinBlocks || sb.Inodes < 1 {
		return NewFSError(ErrInvalidSuperblock, "validate", "superblock",
			fmt.Sprintf("blocks=%d inode_blocks=%d inodes=%d", sb.Blocks, sb.InodeBlocks, sb.Inodes))
	}
	if sb.Inodes != sb.InodeBlocks*InodesPerBlock {
		return NewFSError(ErrInvalidSuperblock, "validate", "superblock",
			fmt.Sprintf("inodes=%d does not match %d inode blocks", sb.Inodes, sb.InodeBlocks))
	}
	if sb.InodeBlocks >= sb.Blocks {
		return NewFSError(ErrInvalidSuperblock, "validate", "superblock",
			fmt.Sprintf("inode table (%d blocks) does not fit in %d blocks", sb.InodeBlocks, sb.Blocks))
	}
	return nil
}

// FirstDataBlock returns the first block number that may hold file data
func (sb SuperBlock) FirstDataBlock() uint32 {
	return sb.InodeBlocks + 1
}

// Inode is the fixed-size on-disk record describing one file
type Inode struct {
	Valid    uint32
	Size     uint32
	Direct   [PointersPerInode]uint32
	Indirect uint32
}

// IsValid reports whether the inode is in use
func (in *Inode) IsValid() bool {
	return in.Valid != 0
}

// BlockCount returns the number of data blocks holding the file's bytes
func (in *Inode) BlockCount() uint32 {
	return (in.Size + BlockSize - 1) / BlockSize
}

// inodeLocation returns the table block and slot of inode n
func inodeLocation(n uint32) (block uint32, slot int) {
	return 1 + n/InodesPerBlock, int(n % InodesPerBlock)
}

// EncodeSuperBlock serializes sb into a full block
func EncodeSuperBlock(sb SuperBlock) ([]byte, error) {
	buf, writer := blockWriter()

	for _, field := range []uint32{sb.MagicNumber, sb.Blocks, sb.InodeBlocks, sb.Inodes} {
		if err := writer.WriteUint32(field); err != nil {
			return nil, fmt.Errorf("failed to write superblock: %w", err)
		}
	}

	if err := writer.WritePadding(BlockSize - superBlockSize); err != nil {
		return nil, fmt.Errorf("failed to pad superblock: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSuperBlock deserializes the superblock from block 0's contents.
// It does not validate the decoded fields.
func DecodeSuperBlock(data []byte) (SuperBlock, error) {
	var sb SuperBlock
	if len(data) < superBlockSize {
		return sb, NewFSError(ErrInvalidSuperblock, "decode", "superblock", fmt.Sprintf("%d bytes", len(data)))
	}

	reader := NewBinaryReader(bytes.NewReader(data), byteOrder)
	var err error
	if sb.MagicNumber, err = reader.ReadUint32(); err != nil {
		return sb, fmt.Errorf("failed to read magic number: %w", err)
	}
	if sb.Blocks, err = reader.ReadUint32(); err != nil {
		return sb, fmt.Errorf("failed to read block count: %w", err)
	}
	if sb.InodeBlocks, err = reader.ReadUint32(); err != nil {
		return sb, fmt.Errorf("failed to read inode block count: %w", err)
	}
	if sb.Inodes, err = reader.ReadUint32(); err != nil {
		return sb, fmt.Errorf("failed to read inode count: %w", err)
	}
	return sb, nil
}

// EncodeInodeTable serializes a table block
func EncodeInodeTable(table *[InodesPerBlock]Inode) ([]byte, error) {
	buf, writer := blockWriter()
	if err := writer.Write(table); err != nil {
		return nil, fmt.Errorf("failed to write inode table: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeInodeTable deserializes a table block
func DecodeInodeTable(data []byte) (*[InodesPerBlock]Inode, error) {
	if len(data) != BlockSize {
		return nil, fmt.Errorf("decoding inode table: %w", disk.ErrShortBuffer)
	}
	table := new([InodesPerBlock]Inode)
	if err := NewBinaryReader(bytes.NewReader(data), byteOrder).Read(table); err != nil {
		return nil, fmt.Errorf("failed to read inode table: %w", err)
	}
	return table, nil
}

// EncodePointers serializes an indirect block
func EncodePointers(pointers *[PointersPerBlock]uint32) ([]byte, error) {
	buf, writer := blockWriter()
	if err := writer.Write(pointers); err != nil {
		return nil, fmt.Errorf("failed to write pointers: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePointers deserializes an indirect block
func DecodePointers(data []byte) (*[PointersPerBlock]uint32, error) {
	if len(data) != BlockSize {
		return nil, fmt.Errorf("decoding pointers: %w", disk.ErrShortBuffer)
	}
	pointers := new([PointersPerBlock]uint32)
	values, err := NewBinaryReader(bytes.NewReader(data), byteOrder).ReadUint32Array(PointersPerBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to read pointers: %w", err)
	}
	copy(pointers[:], values)
	return pointers, nil
}

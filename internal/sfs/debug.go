package sfs

import (
	"github.com/deploymenttheory/go-simplefs/internal/disk"
)

// Report describes the on-disk state of a file system
type Report struct {
	SuperBlock SuperBlock    `json:"superblock" yaml:"superblock" plist:"superblock"`
	MagicValid bool          `json:"magic_valid" yaml:"magic_valid" plist:"magic_valid"`
	Inodes     []InodeReport `json:"inodes" yaml:"inodes" plist:"inodes"`
}

// InodeReport lists the blocks a valid inode uses given its size
type InodeReport struct {
	Number         uint32   `json:"number" yaml:"number" plist:"number"`
	Size           uint32   `json:"size" yaml:"size" plist:"size"`
	DirectBlocks   []uint32 `json:"direct_blocks" yaml:"direct_blocks" plist:"direct_blocks"`
	IndirectBlock  uint32   `json:"indirect_block,omitempty" yaml:"indirect_block,omitempty" plist:"indirect_block,omitempty"`
	IndirectBlocks []uint32 `json:"indirect_blocks,omitempty" yaml:"indirect_blocks,omitempty" plist:"indirect_blocks,omitempty"`
}

// Debug reads the superblock and inode table of d. It never modifies the
// disk and does not need a mounted session. Inode table blocks that cannot
// be read are skipped, as are indirect blocks that cannot be read.
func Debug(d disk.Disk) (*Report, error) {
	sb, err := ReadSuperBlock(d)
	if err != nil {
		return nil, NewFSError(err, "debug", "superblock", "")
	}

	report := &Report{
		SuperBlock: sb,
		MagicValid: sb.MagicNumber == MagicNumber,
		Inodes:     []InodeReport{},
	}
	if !report.MagicValid {
		return report, nil
	}

	inodeBlocks := sb.InodeBlocks
	if inodeBlocks >= d.Blocks() {
		inodeBlocks = d.Blocks() - 1
	}

	buf := make([]byte, BlockSize)
	for tb := uint32(1); tb <= inodeBlocks; tb++ {
		if err := d.ReadBlock(tb, buf); err != nil {
			continue
		}
		table, err := DecodeInodeTable(buf)
		if err != nil {
			continue
		}

		for slot := range table {
			inode := &table[slot]
			if !inode.IsValid() {
				continue
			}
			report.Inodes = append(report.Inodes, inodeReport(d, (tb-1)*InodesPerBlock+uint32(slot), inode))
		}
	}
	return report, nil
}

func inodeReport(d disk.Disk, n uint32, inode *Inode) InodeReport {
	r := InodeReport{Number: n, Size: inode.Size, DirectBlocks: []uint32{}}

	blocks := inode.BlockCount()
	for i := uint32(0); i < PointersPerInode && i < blocks; i++ {
		r.DirectBlocks = append(r.DirectBlocks, inode.Direct[i])
	}
	if blocks <= PointersPerInode || inode.Indirect == noBlock || inode.Indirect >= d.Blocks() {
		return r
	}

	buf := make([]byte, BlockSize)
	if err := d.ReadBlock(inode.Indirect, buf); err != nil {
		return r
	}
	pointers, err := DecodePointers(buf)
	if err != nil {
		return r
	}

	r.IndirectBlock = inode.Indirect
	r.IndirectBlocks = []uint32{}
	for i := uint32(0); i < blocks-PointersPerInode && i < PointersPerBlock; i++ {
		r.IndirectBlocks = append(r.IndirectBlocks, pointers[i])
	}
	return r
}

package sfs

import (
	"fmt"
)

// blockPointers is the decoded contents of an indirect block, loaded on
// first use by a read or write.
type blockPointers struct {
	block    uint32
	pointers *[PointersPerBlock]uint32
}

func (fs *FileSystem) readPointers(b uint32) (*[PointersPerBlock]uint32, error) {
	buf := make([]byte, BlockSize)
	if err := fs.disk.ReadBlock(b, buf); err != nil {
		return nil, err
	}
	return DecodePointers(buf)
}

func (fs *FileSystem) writePointers(b uint32, pointers *[PointersPerBlock]uint32) error {
	data, err := EncodePointers(pointers)
	if err != nil {
		return err
	}
	return fs.disk.WriteBlock(b, data)
}

// checkDataBlock rejects pointers into the superblock, the inode table or
// past the end of the disk
func (fs *FileSystem) checkDataBlock(n, b uint32) error {
	if b < fs.super.FirstDataBlock() || b >= fs.super.Blocks {
		return NewFSError(ErrCorruptInode, "resolve", inodeObject(n), blockObject(b))
	}
	return nil
}

// lookup translates logical block i of inode into a block number. It
// returns noBlock for unallocated blocks.
func (fs *FileSystem) lookup(n uint32, inode *Inode, ind *blockPointers, i uint32) (uint32, error) {
	var b uint32
	if i < PointersPerInode {
		b = inode.Direct[i]
	} else {
		if inode.Indirect == noBlock {
			return noBlock, nil
		}
		if err := fs.checkDataBlock(n, inode.Indirect); err != nil {
			return noBlock, err
		}
		if ind.pointers == nil {
			pointers, err := fs.readPointers(inode.Indirect)
			if err != nil {
				return noBlock, err
			}
			ind.block, ind.pointers = inode.Indirect, pointers
		}
		b = ind.pointers[i-PointersPerInode]
	}

	if b == noBlock {
		return noBlock, nil
	}
	return b, fs.checkDataBlock(n, b)
}

// Read copies up to len(p) bytes of inode n starting at offset into p and
// returns the number of bytes copied. Reading at or past the end of the file
// returns 0 and no error. Unallocated blocks inside the file read as zeros.
func (fs *FileSystem) Read(n uint32, p []byte, offset uint32) (int, error) {
	if err := fs.requireMounted("read"); err != nil {
		return 0, err
	}

	inode, err := fs.loadInode("read", n)
	if err != nil {
		return 0, err
	}

	if inode.Size == 0 || offset >= inode.Size {
		return 0, nil
	}
	length := len(p)
	if remaining := int(inode.Size - offset); length > remaining {
		length = remaining
	}

	var ind blockPointers
	buf := make([]byte, BlockSize)
	read := 0
	for read < length {
		pos := offset + uint32(read)
		i, off := pos/BlockSize, pos%BlockSize

		b, err := fs.lookup(n, &inode, &ind, i)
		if err != nil {
			return read, NewFSError(err, "read", inodeObject(n), fmt.Sprintf("logical block %d", i))
		}

		if b == noBlock {
			clear(buf)
		} else if err := fs.disk.ReadBlock(b, buf); err != nil {
			return read, NewFSError(err, "read", inodeObject(n), blockObject(b))
		}

		read += copy(p[read:length], buf[off:])
	}

	return read, nil
}

// Write stores p in inode n starting at offset and returns the number of
// bytes written. Blocks are allocated as needed. Each touched block is
// written whole: bytes of the block outside p are overwritten with zeros,
// including bytes stored there by earlier writes.
//
// The inode is saved even when the write stops early, with its size covering
// exactly the bytes that were committed. Running out of blocks returns
// ErrOutOfSpace and growing beyond MaxFileSize returns ErrFileTooLarge.
func (fs *FileSystem) Write(n uint32, p []byte, offset uint32) (int, error) {
	if err := fs.requireMounted("write"); err != nil {
		return 0, err
	}

	inode, err := fs.loadInode("write", n)
	if err != nil {
		return 0, err
	}

	var ind blockPointers
	var werr error
	buf := make([]byte, BlockSize)
	written := 0
	for written < len(p) {
		pos := uint64(offset) + uint64(written)
		if pos >= MaxFileSize {
			werr = NewFSError(ErrFileTooLarge, "write", inodeObject(n), fmt.Sprintf("offset %d", pos))
			break
		}
		i, off := uint32(pos/BlockSize), int(pos%BlockSize)

		chunk := BlockSize - off
		if remaining := len(p) - written; chunk > remaining {
			chunk = remaining
		}

		clear(buf)
		copy(buf[off:], p[written:written+chunk])
		if err := fs.writeBlock(n, &inode, &ind, i, buf); err != nil {
			werr = err
			break
		}
		written += chunk
	}

	if written > 0 {
		if end := offset + uint32(written); end > inode.Size {
			inode.Size = end
		}
	}
	if err := fs.saveInode("write", n, &inode); err != nil {
		fs.log.Warnw("Failed to save inode after write", "inode", n, "written", written, "error", err)
		return written, err
	}

	if werr != nil {
		fs.log.Debugw("Write stopped early", "inode", n, "written", written, "requested", len(p), "error", werr)
	}
	return written, werr
}

// writeBlock writes data to logical block i of inode, allocating the data
// block and the indirect block if needed. Data reaches the disk before any
// pointer to it is stored.
func (fs *FileSystem) writeBlock(n uint32, inode *Inode, ind *blockPointers, i uint32, data []byte) error {
	if i < PointersPerInode {
		b, fresh, err := fs.allocateIfZero(n, inode.Direct[i])
		if err != nil {
			return err
		}
		if err := fs.disk.WriteBlock(b, data); err != nil {
			if fresh {
				fs.free.release(b)
			}
			return NewFSError(err, "write", inodeObject(n), blockObject(b))
		}
		inode.Direct[i] = b
		return nil
	}

	if err := fs.ensureIndirect(n, inode, ind); err != nil {
		return err
	}

	slot := i - PointersPerInode
	b, fresh, err := fs.allocateIfZero(n, ind.pointers[slot])
	if err != nil {
		return err
	}
	if err := fs.disk.WriteBlock(b, data); err != nil {
		if fresh {
			fs.free.release(b)
		}
		return NewFSError(err, "write", inodeObject(n), blockObject(b))
	}
	if !fresh {
		return nil
	}

	ind.pointers[slot] = b
	if err := fs.writePointers(ind.block, ind.pointers); err != nil {
		ind.pointers[slot] = noBlock
		fs.free.release(b)
		return NewFSError(err, "write", inodeObject(n), blockObject(ind.block))
	}
	return nil
}

// ensureIndirect loads the indirect block of inode, allocating and clearing
// a new one if the inode has none.
func (fs *FileSystem) ensureIndirect(n uint32, inode *Inode, ind *blockPointers) error {
	if inode.Indirect != noBlock {
		if ind.pointers != nil {
			return nil
		}
		if err := fs.checkDataBlock(n, inode.Indirect); err != nil {
			return err
		}
		pointers, err := fs.readPointers(inode.Indirect)
		if err != nil {
			return NewFSError(err, "write", inodeObject(n), blockObject(inode.Indirect))
		}
		ind.block, ind.pointers = inode.Indirect, pointers
		return nil
	}

	b, _, err := fs.allocateIfZero(n, noBlock)
	if err != nil {
		return err
	}
	pointers := new([PointersPerBlock]uint32)
	if err := fs.writePointers(b, pointers); err != nil {
		fs.free.release(b)
		return NewFSError(err, "write", inodeObject(n), blockObject(b))
	}

	inode.Indirect = b
	ind.block, ind.pointers = b, pointers
	return nil
}

// allocateIfZero returns b unchanged if it is already allocated, otherwise a
// newly claimed block
func (fs *FileSystem) allocateIfZero(n, b uint32) (uint32, bool, error) {
	if b != noBlock {
		return b, false, fs.checkDataBlock(n, b)
	}
	b = fs.free.allocate()
	if b == noBlock {
		return noBlock, false, NewFSError(ErrOutOfSpace, "write", inodeObject(n), "")
	}
	return b, true, nil
}

// Remove releases every block of inode n and marks it free. Released blocks
// are cleared on disk before they return to the free map.
func (fs *FileSystem) Remove(n uint32) error {
	if err := fs.requireMounted("remove"); err != nil {
		return err
	}

	inode, err := fs.loadInode("remove", n)
	if err != nil {
		return err
	}

	zeros := make([]byte, BlockSize)
	release := func(b uint32) error {
		if err := fs.checkDataBlock(n, b); err != nil {
			return err
		}
		if err := fs.disk.WriteBlock(b, zeros); err != nil {
			return NewFSError(err, "remove", inodeObject(n), blockObject(b))
		}
		fs.free.release(b)
		return nil
	}

	if inode.Indirect != noBlock {
		if err := fs.checkDataBlock(n, inode.Indirect); err != nil {
			return err
		}
		pointers, err := fs.readPointers(inode.Indirect)
		if err != nil {
			return NewFSError(err, "remove", inodeObject(n), blockObject(inode.Indirect))
		}
		for _, b := range pointers {
			if b == noBlock {
				continue
			}
			if err := release(b); err != nil {
				return err
			}
		}
		if err := release(inode.Indirect); err != nil {
			return err
		}
	}

	for _, b := range inode.Direct {
		if b == noBlock {
			continue
		}
		if err := release(b); err != nil {
			return err
		}
	}

	if err := fs.saveInode("remove", n, &Inode{}); err != nil {
		return err
	}

	fs.log.Debugw("Removed inode", "inode", n, "size", inode.Size)
	return nil
}

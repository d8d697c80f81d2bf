package sfs

// noBlock is returned by the allocator when every block is in use. Block 0
// always holds the superblock, so it never names a data block.
const noBlock uint32 = 0

// freeMap tracks which blocks are available. It lives only while a file
// system is mounted and is rebuilt from the inode table on every mount.
type freeMap struct {
	free []bool
}

// newFreeMap returns a map with every block free except block 0 and the
// inode table.
func newFreeMap(sb SuperBlock) *freeMap {
	fm := &freeMap{free: make([]bool, sb.Blocks)}
	for b := sb.FirstDataBlock(); b < sb.Blocks; b++ {
		fm.free[b] = true
	}
	return fm
}

// allocate claims the lowest numbered free block
func (fm *freeMap) allocate() uint32 {
	for b := 1; b < len(fm.free); b++ {
		if fm.free[b] {
			fm.free[b] = false
			return uint32(b)
		}
	}
	return noBlock
}

// release returns b to the pool
func (fm *freeMap) release(b uint32) {
	if b != noBlock && int(b) < len(fm.free) {
		fm.free[b] = true
	}
}

// reserve marks b as in use
func (fm *freeMap) reserve(b uint32) {
	if int(b) < len(fm.free) {
		fm.free[b] = false
	}
}

func (fm *freeMap) isFree(b uint32) bool {
	return int(b) < len(fm.free) && fm.free[b]
}

func (fm *freeMap) freeCount() int {
	n := 0
	for _, free := range fm.free {
		if free {
			n++
		}
	}
	return n
}

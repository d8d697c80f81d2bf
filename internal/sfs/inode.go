package sfs

func (fs *FileSystem) requireMounted(operation string) error {
	if !fs.Mounted() {
		return NewFSError(ErrNotMounted, operation, "", "")
	}
	return nil
}

// readTable loads the inode table block tb
func (fs *FileSystem) readTable(tb uint32) (*[InodesPerBlock]Inode, error) {
	buf := make([]byte, BlockSize)
	if err := fs.disk.ReadBlock(tb, buf); err != nil {
		return nil, err
	}
	return DecodeInodeTable(buf)
}

func (fs *FileSystem) writeTable(tb uint32, table *[InodesPerBlock]Inode) error {
	data, err := EncodeInodeTable(table)
	if err != nil {
		return err
	}
	return fs.disk.WriteBlock(tb, data)
}

// loadInode returns inode n if it is in range and valid
func (fs *FileSystem) loadInode(operation string, n uint32) (Inode, error) {
	if n >= fs.super.Inodes {
		return Inode{}, NewFSError(ErrInodeNotFound, operation, inodeObject(n), "out of range")
	}

	tb, slot := inodeLocation(n)
	table, err := fs.readTable(tb)
	if err != nil {
		return Inode{}, NewFSError(err, operation, inodeObject(n), "loading inode table")
	}

	inode := table[slot]
	if !inode.IsValid() {
		return Inode{}, NewFSError(ErrInodeNotFound, operation, inodeObject(n), "")
	}
	return inode, nil
}

// saveInode stores inode as inode n with a read-modify-write of its table block
func (fs *FileSystem) saveInode(operation string, n uint32, inode *Inode) error {
	if n >= fs.super.Inodes {
		return NewFSError(ErrInodeNotFound, operation, inodeObject(n), "out of range")
	}

	tb, slot := inodeLocation(n)
	table, err := fs.readTable(tb)
	if err != nil {
		return NewFSError(err, operation, inodeObject(n), "loading inode table")
	}

	table[slot] = *inode
	if err := fs.writeTable(tb, table); err != nil {
		return NewFSError(err, operation, inodeObject(n), "saving inode table")
	}
	return nil
}

// Create allocates the lowest numbered free inode and returns its number
func (fs *FileSystem) Create() (uint32, error) {
	if err := fs.requireMounted("create"); err != nil {
		return 0, err
	}

	for tb := uint32(1); tb <= fs.super.InodeBlocks; tb++ {
		table, err := fs.readTable(tb)
		if err != nil {
			return 0, NewFSError(err, "create", blockObject(tb), "loading inode table")
		}

		for slot := range table {
			if table[slot].IsValid() {
				continue
			}

			table[slot] = Inode{Valid: 1}
			if err := fs.writeTable(tb, table); err != nil {
				return 0, NewFSError(err, "create", blockObject(tb), "saving inode table")
			}

			n := (tb-1)*InodesPerBlock + uint32(slot)
			fs.log.Debugw("Created inode", "inode", n)
			return n, nil
		}
	}

	fs.log.Warnw("Inode table is full", "inodes", fs.super.Inodes)
	return 0, NewFSError(ErrTableFull, "create", "", "")
}

// Stat returns the size in bytes of inode n
func (fs *FileSystem) Stat(n uint32) (uint32, error) {
	if err := fs.requireMounted("stat"); err != nil {
		return 0, err
	}

	inode, err := fs.loadInode("stat", n)
	if err != nil {
		return 0, err
	}
	return inode.Size, nil
}

// Inode returns a copy of inode n
func (fs *FileSystem) Inode(n uint32) (Inode, error) {
	if err := fs.requireMounted("inode"); err != nil {
		return Inode{}, err
	}
	return fs.loadInode("inode", n)
}

// Package session ties a disk image to a SimpleFS mount session and moves
// file contents between inodes and the host.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"

	commonerrors "github.com/deploymenttheory/go-simplefs/internal/common/errors"
	"github.com/deploymenttheory/go-simplefs/internal/common/fsutil"
	"github.com/deploymenttheory/go-simplefs/internal/disk"
	"github.com/deploymenttheory/go-simplefs/internal/sfs"
	"go.uber.org/zap"
)

// ChunkSize is the transfer size used when copying between the host and an inode
const ChunkSize = 4 * sfs.BlockSize

// Options selects the disk image backing a session
type Options struct {
	Path string
	// Blocks sizes a new or resized image. Zero opens an existing image at
	// its current size.
	Blocks uint32
	// EncryptionKey is a hex encoded AES-XTS key. Empty disables encryption.
	EncryptionKey string
	Logger        *zap.SugaredLogger
}

// Session is an open disk image and its file system session
type Session struct {
	raw  *disk.FileDisk
	disk disk.Disk
	fs   *sfs.FileSystem
	log  *zap.SugaredLogger
}

// Open opens the image described by opts. The file system is not mounted.
func Open(opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var raw *disk.FileDisk
	var err error
	if opts.Blocks == 0 {
		if !fsutil.FileExists(opts.Path) {
			return nil, fmt.Errorf("%w: %s", commonerrors.ErrFileNotFound, opts.Path)
		}
		raw, err = disk.OpenExisting(opts.Path)
	} else {
		raw, err = disk.Open(opts.Path, opts.Blocks)
	}
	if err != nil {
		return nil, err
	}

	s := &Session{
		raw:  raw,
		disk: raw,
		fs:   sfs.New(sfs.WithLogger(log)),
		log:  log,
	}

	if opts.EncryptionKey != "" {
		key, err := disk.ParseKey(opts.EncryptionKey)
		if err != nil {
			raw.Close()
			return nil, err
		}
		encrypted, err := disk.NewEncrypted(raw, key)
		if err != nil {
			raw.Close()
			return nil, err
		}
		s.disk = encrypted
	}

	log.Debugw("Opened disk image", "path", opts.Path, "blocks", raw.Blocks(), "encrypted", opts.EncryptionKey != "")
	return s, nil
}

// FileSystem returns the SimpleFS session
func (s *Session) FileSystem() *sfs.FileSystem { return s.fs }

// Disk returns the device the file system runs on
func (s *Session) Disk() disk.Disk { return s.disk }

// RawDisk returns the backing image without the encryption layer
func (s *Session) RawDisk() *disk.FileDisk { return s.raw }

// Stats returns the block transfer counters of the image
func (s *Session) Stats() disk.Stats { return s.raw.Stats() }

// Formatted reports whether the image holds a valid superblock
func (s *Session) Formatted() bool {
	sb, err := sfs.ReadSuperBlock(s.disk)
	return err == nil && sb.Validate() == nil
}

// Format writes a fresh file system. Without force, an image that already
// holds a valid file system is left alone.
func (s *Session) Format(force bool) error {
	if !force && s.Formatted() {
		return sfs.NewFSError(sfs.ErrAlreadyFormatted, "format", "", "use force to overwrite")
	}
	return s.fs.Format(s.disk)
}

// Mount mounts the file system
func (s *Session) Mount() error {
	return s.fs.Mount(s.disk)
}

// Unmount unmounts the file system
func (s *Session) Unmount() {
	s.fs.Unmount()
}

// Close unmounts the file system, closes the image and logs the transfer
// counters
func (s *Session) Close() error {
	s.fs.Unmount()
	stats := s.raw.Stats()
	s.log.Infow("Closed disk image", "path", s.raw.Path(), "reads", stats.Reads, "writes", stats.Writes)
	return s.raw.Close()
}

// WriteFrom copies r into inode n starting at offset 0, ChunkSize bytes at a
// time. It returns the number of bytes stored.
func (s *Session) WriteFrom(n uint32, r io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	var offset int64
	for {
		count, rerr := io.ReadFull(r, buf)
		if count > 0 {
			written, err := s.fs.Write(n, buf[:count], uint32(offset))
			offset += int64(written)
			if err != nil {
				return offset, err
			}
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			return offset, nil
		}
		if rerr != nil {
			return offset, fmt.Errorf("%w: %v", commonerrors.ErrFileReadError, rerr)
		}
	}
}

// ReadTo copies the contents of inode n into w, ChunkSize bytes at a time
func (s *Session) ReadTo(n uint32, w io.Writer) (int64, error) {
	buf := make([]byte, ChunkSize)
	var offset int64
	for {
		read, err := s.fs.Read(n, buf, uint32(offset))
		if err != nil {
			return offset, err
		}
		if read == 0 {
			return offset, nil
		}
		if _, err := w.Write(buf[:read]); err != nil {
			return offset, fmt.Errorf("%w: %v", commonerrors.ErrFileWriteError, err)
		}
		offset += int64(read)
	}
}

// CopyIn copies the host file src into inode n
func (s *Session) CopyIn(src string, n uint32) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", commonerrors.ErrFileNotFound, src)
		}
		return 0, fmt.Errorf("%w: %v", commonerrors.ErrFileReadError, err)
	}
	defer f.Close()

	written, err := s.WriteFrom(n, f)
	s.log.Debugw("Copied file into inode", "source", src, "inode", n, "bytes", written)
	return written, err
}

// CopyOut copies inode n into the host file dst, replacing it
func (s *Session) CopyOut(n uint32, dst string) (int64, error) {
	if _, err := s.fs.Stat(n); err != nil {
		return 0, err
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", commonerrors.ErrFileWriteError, err)
	}

	read, err := s.ReadTo(n, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %v", commonerrors.ErrFileWriteError, cerr)
	}
	s.log.Debugw("Copied inode to file", "inode", n, "destination", dst, "bytes", read)
	return read, err
}

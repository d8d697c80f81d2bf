package sfs

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-simplefs/internal/disk"
)

// Errors returned by file system operations
var (
	// Lifecycle errors
	ErrAlreadyMounted    = errors.New("file system already mounted")
	ErrAlreadyFormatted  = errors.New("disk already holds a valid file system")
	ErrNotMounted        = errors.New("file system not mounted")
	ErrDiskTooSmall      = errors.New("disk must have at least 3 blocks")
	ErrInvalidSuperblock = errors.New("invalid superblock")

	// Inode errors
	ErrInodeNotFound = errors.New("inode not found")
	ErrTableFull     = errors.New("inode table is full")
	ErrCorruptInode  = errors.New("inode references an invalid block")

	// Space errors
	ErrOutOfSpace   = errors.New("no free blocks")
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)

// FSError represents an error with additional file system context
type FSError struct {
	Err       error  // The underlying error
	Operation string // The operation that caused the error
	Object    string // The object on which the operation was performed (inode, block)
	Detail    string // Additional details about the error
}

// Error implements the error interface
func (e *FSError) Error() string {
	if e.Object != "" && e.Detail != "" {
		return fmt.Sprintf("%s: %s [%s]: %v", e.Operation, e.Object, e.Detail, e.Err)
	} else if e.Object != "" {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Object, e.Err)
	} else if e.Detail != "" {
		return fmt.Sprintf("%s: %v [%s]", e.Operation, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error
func (e *FSError) Unwrap() error {
	return e.Err
}

// NewFSError creates a new FSError with the given details
func NewFSError(err error, operation string, object string, detail string) error {
	return &FSError{
		Err:       err,
		Operation: operation,
		Object:    object,
		Detail:    detail,
	}
}

func inodeObject(n uint32) string {
	return fmt.Sprintf("inode %d", n)
}

func blockObject(b uint32) string {
	return fmt.Sprintf("block %d", b)
}

// IsNotFound returns true if the error indicates a missing inode
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInodeNotFound)
}

// IsSpaceError returns true if the error indicates exhausted blocks or inodes
func IsSpaceError(err error) bool {
	return errors.Is(err, ErrOutOfSpace) || errors.Is(err, ErrTableFull) || errors.Is(err, ErrFileTooLarge)
}

// IsDeviceError returns true if the error came from the block device
func IsDeviceError(err error) bool {
	return errors.Is(err, disk.ErrDevice)
}

// IsInvalidData returns true if the on-disk structures are inconsistent
func IsInvalidData(err error) bool {
	return errors.Is(err, ErrInvalidSuperblock) || errors.Is(err, ErrCorruptInode)
}

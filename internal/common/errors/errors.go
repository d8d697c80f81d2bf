package errors

import (
	"errors"
)

var (
	// General Errors
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrPathNotAccessible = errors.New("path is not accessible")

	// Archive Errors
	ErrInvalidArchive      = errors.New("archive is corrupted or unsupported")
	ErrArchiveNotFound     = errors.New("archive not found")
	ErrChecksumFailed      = errors.New("checksum mismatch")
	ErrDecompressionFailed = errors.New("decompression failed")

	// File & Directory Errors
	ErrFileNotFound   = errors.New("file not found")
	ErrFileReadError  = errors.New("error reading file")
	ErrFileWriteError = errors.New("error writing to file")
	ErrFileExists     = errors.New("file already exists")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

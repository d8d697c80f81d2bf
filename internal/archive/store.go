// Package archive stores whole disk images in an object store, compressed and
// described by a manifest
package archive

import (
	"fmt"
	"io"
)

// ObjectStore is a flat key/value blob store such as S3
type ObjectStore interface {
	PutObject(bucket, key string, data io.ReadSeeker) error
	GetObject(bucket, key string) (io.ReadCloser, error)
	ListObjects(bucket, prefix string) ([]string, error)
	DeleteObject(bucket, key string) error
}

// ObjectNotFoundErr is returned when a key does not exist in a bucket
type ObjectNotFoundErr struct {
	Bucket string
	Key    string
}

func (err *ObjectNotFoundErr) Error() string {
	return fmt.Sprintf("object not found: bucket `%s`, key `%s`", err.Bucket, err.Key)
}

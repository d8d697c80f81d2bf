package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/deploymenttheory/go-simplefs/internal/common/fsutil"
)

// LocalObjectStore keeps objects as files under Dir/<bucket>/<key>
type LocalObjectStore struct {
	Dir string
}

func (s *LocalObjectStore) path(bucket, key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if key == "" || clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid object key `%s`", key)
	}
	return filepath.Join(s.Dir, bucket, clean), nil
}

func (s *LocalObjectStore) PutObject(bucket, key string, data io.ReadSeeker) error {
	path, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, data, 0600); err != nil {
		return fmt.Errorf("putting object in bucket `%s` at key `%s`: %w", bucket, key, err)
	}
	return nil
}

func (s *LocalObjectStore) GetObject(bucket, key string) (io.ReadCloser, error) {
	path, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ObjectNotFoundErr{Bucket: bucket, Key: key}
		}
		return nil, fmt.Errorf("getting object from bucket `%s` at key `%s`: %w", bucket, key, err)
	}
	return f, nil
}

func (s *LocalObjectStore) ListObjects(bucket, prefix string) ([]string, error) {
	root := filepath.Join(s.Dir, bucket)
	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return keys, fmt.Errorf("listing objects in bucket `%s` with prefix `%s`: %w", bucket, prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalObjectStore) DeleteObject(bucket, key string) error {
	path, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ObjectNotFoundErr{Bucket: bucket, Key: key}
		}
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

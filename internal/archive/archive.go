package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/deploymenttheory/go-simplefs/internal/common/compressionutil"
	"github.com/deploymenttheory/go-simplefs/internal/common/cryptoutil"
	commonerrors "github.com/deploymenttheory/go-simplefs/internal/common/errors"
	"github.com/deploymenttheory/go-simplefs/internal/common/jsonutil"
	"github.com/deploymenttheory/go-simplefs/internal/disk"
	"github.com/deploymenttheory/go-simplefs/internal/logger"
	"github.com/deploymenttheory/go-simplefs/internal/sfs"
	"github.com/google/uuid"
)

const (
	keyPrefix    = "images/"
	manifestName = "manifest.json"
	imageName    = "image.sfs"
)

// Manifest describes an archived disk image
type Manifest struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Blocks      uint32                `json:"blocks"`
	Size        int64                 `json:"size"`
	Compression compression.Algorithm `json:"compression"`
	Digest      string                `json:"sha256"`
	Formatted   bool                  `json:"formatted"`
	CreatedAt   time.Time             `json:"created_at"`
}

// Archiver pushes and pulls disk images through an ObjectStore
type Archiver struct {
	Store       ObjectStore
	Bucket      string
	Compression compression.Algorithm
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("%w: image name %q", commonerrors.ErrInvalidArgument, name)
	}
	return nil
}

func manifestKey(name string) string {
	return path.Join(keyPrefix, name, manifestName)
}

func imageKey(name string, a compression.Algorithm) string {
	return path.Join(keyPrefix, name, imageName+a.Extension())
}

// Push reads every block of d, compresses the image and stores it together
// with its manifest under name. Whatever d returns is archived: pass the raw
// device to keep an encrypted image encrypted.
func (a *Archiver) Push(name string, d disk.Disk) (*Manifest, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	hasher, err := cryptoutil.NewHasher(cryptoutil.SHA256)
	if err != nil {
		return nil, err
	}
	digest := hasher.NewHashWriter()

	var packed bytes.Buffer
	w, err := compression.NewWriter(a.Compression, &packed)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, disk.BlockSize)
	out := io.MultiWriter(w, digest)
	for b := uint32(0); b < d.Blocks(); b++ {
		if err := d.ReadBlock(b, buf); err != nil {
			w.Close()
			return nil, fmt.Errorf("reading block %d of image: %w", b, err)
		}
		if _, err := out.Write(buf); err != nil {
			w.Close()
			return nil, fmt.Errorf("compressing image: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressing image: %w", err)
	}

	formatted := false
	if sb, err := sfs.ReadSuperBlock(d); err == nil {
		formatted = sb.Validate() == nil
	}

	m := &Manifest{
		ID:          uuid.New().String(),
		Name:        name,
		Blocks:      d.Blocks(),
		Size:        digest.Written(),
		Compression: a.Compression,
		Digest:      digest.Sum(),
		Formatted:   formatted,
		CreatedAt:   time.Now().UTC(),
	}
	if m.Compression == "" {
		m.Compression = compression.None
	}

	if err := a.Store.PutObject(a.Bucket, imageKey(name, m.Compression), bytes.NewReader(packed.Bytes())); err != nil {
		return nil, err
	}

	data, err := jsonutil.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := a.Store.PutObject(a.Bucket, manifestKey(name), bytes.NewReader(data)); err != nil {
		return nil, err
	}

	logger.LogInfo("Pushed disk image", map[string]interface{}{
		"name":        name,
		"id":          m.ID,
		"blocks":      m.Blocks,
		"compression": string(m.Compression),
		"stored":      packed.Len(),
	})
	return m, nil
}

// Manifest fetches the manifest of the image stored under name
func (a *Archiver) Manifest(name string) (*Manifest, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	body, err := a.Store.GetObject(a.Bucket, manifestKey(name))
	if err != nil {
		var notFound *ObjectNotFoundErr
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", commonerrors.ErrArchiveNotFound, name)
		}
		return nil, err
	}
	defer body.Close()

	var m Manifest
	if err := jsonutil.Decode(body, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest of %s: %v", commonerrors.ErrInvalidArchive, name, err)
	}
	if m.Blocks < disk.MinBlocks || m.Size != int64(m.Blocks)*disk.BlockSize {
		return nil, fmt.Errorf("%w: manifest of %s has %d blocks and %d bytes", commonerrors.ErrInvalidArchive, name, m.Blocks, m.Size)
	}
	return &m, nil
}

// Pull restores the image stored under name onto d, which must have exactly
// the number of blocks recorded in the manifest. The image digest is verified
// before the first block is written, so a corrupt archive leaves d unchanged.
func (a *Archiver) Pull(name string, d disk.Disk) (*Manifest, error) {
	m, err := a.Manifest(name)
	if err != nil {
		return nil, err
	}
	if d.Blocks() != m.Blocks {
		return nil, fmt.Errorf("%w: image %s has %d blocks, disk has %d", commonerrors.ErrInvalidArgument, name, m.Blocks, d.Blocks())
	}

	body, err := a.Store.GetObject(a.Bucket, imageKey(name, m.Compression))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	r, err := compression.NewReader(m.Compression, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", commonerrors.ErrDecompressionFailed, err)
	}
	defer r.Close()

	hasher, err := cryptoutil.NewHasher(cryptoutil.SHA256)
	if err != nil {
		return nil, err
	}
	digest := hasher.NewHashWriter()

	// Stage the whole image so d is untouched unless the digest matches
	image := make([]byte, m.Size)
	if _, err := io.ReadFull(io.TeeReader(r, digest), image); err != nil {
		return nil, fmt.Errorf("%w: %v", commonerrors.ErrDecompressionFailed, err)
	}

	if !strings.EqualFold(digest.Sum(), m.Digest) {
		logger.LogWarn("Pulled image failed verification", map[string]interface{}{"name": name, "id": m.ID})
		return nil, fmt.Errorf("%w: image %s", commonerrors.ErrChecksumFailed, name)
	}

	for b := uint32(0); b < m.Blocks; b++ {
		block := image[int64(b)*disk.BlockSize : int64(b+1)*disk.BlockSize]
		if err := d.WriteBlock(b, block); err != nil {
			return nil, fmt.Errorf("writing block %d: %w", b, err)
		}
	}

	logger.LogInfo("Pulled disk image", map[string]interface{}{
		"name":   name,
		"id":     m.ID,
		"blocks": m.Blocks,
	})
	return m, nil
}

// List returns the names of all archived images
func (a *Archiver) List() ([]string, error) {
	keys, err := a.Store.ListObjects(a.Bucket, keyPrefix)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, key := range keys {
		rest := strings.TrimPrefix(key, keyPrefix)
		name, file, ok := strings.Cut(rest, "/")
		if ok && file == manifestName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the image stored under name and its manifest
func (a *Archiver) Delete(name string) error {
	m, err := a.Manifest(name)
	if err != nil {
		return err
	}
	if err := a.Store.DeleteObject(a.Bucket, imageKey(name, m.Compression)); err != nil {
		var notFound *ObjectNotFoundErr
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return a.Store.DeleteObject(a.Bucket, manifestKey(name))
}

package archive

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deploymenttheory/go-simplefs/internal/common/compressionutil"
	commonerrors "github.com/deploymenttheory/go-simplefs/internal/common/errors"
	"github.com/deploymenttheory/go-simplefs/internal/disk"
	"github.com/deploymenttheory/go-simplefs/internal/sfs"
)

type objectStoreFake map[[2]string][]byte

func (osf objectStoreFake) PutObject(bucket, key string, data io.ReadSeeker) error {
	var b bytes.Buffer
	if _, err := io.Copy(&b, data); err != nil {
		return err
	}
	osf[[2]string{bucket, key}] = b.Bytes()
	return nil
}

func (osf objectStoreFake) GetObject(bucket, key string) (io.ReadCloser, error) {
	data, found := osf[[2]string{bucket, key}]
	if !found {
		return nil, &ObjectNotFoundErr{Bucket: bucket, Key: key}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (osf objectStoreFake) ListObjects(bucket, prefix string) ([]string, error) {
	var out []string
	for key := range osf {
		if key[0] == bucket && strings.HasPrefix(key[1], prefix) {
			out = append(out, key[1])
		}
	}
	return out, nil
}

func (osf objectStoreFake) DeleteObject(bucket, key string) error {
	k := [2]string{bucket, key}
	if _, found := osf[k]; !found {
		return &ObjectNotFoundErr{Bucket: bucket, Key: key}
	}
	delete(osf, k)
	return nil
}

// formattedImage returns a 20 block image holding one file
func formattedImage(t *testing.T) (*disk.FileDisk, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.sfs")
	d, err := disk.Open(path, 20)
	if err != nil {
		t.Fatalf("disk.Open failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	fs := sfs.New()
	if err := fs.Format(d); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if err := fs.Mount(d); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	n, _ := fs.Create()
	if _, err := fs.Write(n, []byte("archived file"), 0); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	fs.Unmount()
	return d, path
}

func TestPushPull(t *testing.T) {
	for _, alg := range compression.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			src, srcPath := formattedImage(t)
			store := objectStoreFake{}
			a := &Archiver{Store: store, Bucket: "images", Compression: alg}

			m, err := a.Push("test", src)
			if err != nil {
				t.Fatalf("Push failed: %v", err)
			}

			raw, _ := os.ReadFile(srcPath)
			sum := sha256.Sum256(raw)
			if m.Digest != hex.EncodeToString(sum[:]) {
				t.Errorf("manifest digest %s does not match image", m.Digest)
			}
			if m.Blocks != 20 || m.Size != 20*disk.BlockSize || !m.Formatted || m.ID == "" || m.Compression != alg {
				t.Errorf("unexpected manifest %+v", m)
			}

			dst, err := disk.Open(filepath.Join(t.TempDir(), "restored.sfs"), m.Blocks)
			if err != nil {
				t.Fatalf("disk.Open failed: %v", err)
			}
			defer dst.Close()

			pulled, err := a.Pull("test", dst)
			if err != nil {
				t.Fatalf("Pull failed: %v", err)
			}
			if pulled.ID != m.ID {
				t.Errorf("pulled manifest id %s; want %s", pulled.ID, m.ID)
			}

			fs := sfs.New()
			if err := fs.Mount(dst); err != nil {
				t.Fatalf("Mount of restored image failed: %v", err)
			}
			buf := make([]byte, 64)
			read, err := fs.Read(0, buf, 0)
			if err != nil || string(buf[:read]) != "archived file" {
				t.Errorf("restored file = %q, %v", buf[:read], err)
			}
		})
	}
}

func TestPullDetectsCorruption(t *testing.T) {
	src, _ := formattedImage(t)
	store := objectStoreFake{}
	a := &Archiver{Store: store, Bucket: "images", Compression: compression.None}
	if _, err := a.Push("test", src); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	key := [2]string{"images", "images/test/image.sfs"}
	store[key][3*disk.BlockSize] ^= 0xff

	dst := filledDisk(t, 20, 0xab)
	if _, err := a.Pull("test", dst); !errors.Is(err, commonerrors.ErrChecksumFailed) {
		t.Errorf("expected ErrChecksumFailed, got %v", err)
	}
	assertFilled(t, dst, 0xab)
}

func TestPullTruncatedImage(t *testing.T) {
	src, _ := formattedImage(t)
	store := objectStoreFake{}
	a := &Archiver{Store: store, Bucket: "images", Compression: compression.None}
	if _, err := a.Push("test", src); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	key := [2]string{"images", "images/test/image.sfs"}
	store[key] = store[key][:5*disk.BlockSize]

	dst := filledDisk(t, 20, 0xab)
	if _, err := a.Pull("test", dst); !errors.Is(err, commonerrors.ErrDecompressionFailed) {
		t.Errorf("expected ErrDecompressionFailed, got %v", err)
	}
	assertFilled(t, dst, 0xab)
}

// filledDisk opens a temporary image with every byte set to fill
func filledDisk(t *testing.T, blocks uint32, fill byte) *disk.FileDisk {
	t.Helper()
	d, err := disk.Open(filepath.Join(t.TempDir(), "restored.sfs"), blocks)
	if err != nil {
		t.Fatalf("disk.Open failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	block := bytes.Repeat([]byte{fill}, disk.BlockSize)
	for b := uint32(0); b < blocks; b++ {
		if err := d.WriteBlock(b, block); err != nil {
			t.Fatalf("WriteBlock(%d) failed: %v", b, err)
		}
	}
	return d
}

// assertFilled fails the test unless every byte of d still equals fill
func assertFilled(t *testing.T, d disk.Disk, fill byte) {
	t.Helper()
	buf := make([]byte, disk.BlockSize)
	for b := uint32(0); b < d.Blocks(); b++ {
		if err := d.ReadBlock(b, buf); err != nil {
			t.Fatalf("ReadBlock(%d) failed: %v", b, err)
		}
		for i, v := range buf {
			if v != fill {
				t.Fatalf("block %d byte %d = %#x after failed pull; want %#x", b, i, v, fill)
			}
		}
	}
}

func TestPullWrongGeometry(t *testing.T) {
	src, _ := formattedImage(t)
	a := &Archiver{Store: objectStoreFake{}, Bucket: "images", Compression: compression.GZIP}
	if _, err := a.Push("test", src); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	dst, _ := disk.Open(filepath.Join(t.TempDir(), "restored.sfs"), 30)
	defer dst.Close()
	if _, err := a.Pull("test", dst); !errors.Is(err, commonerrors.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestManifestNotFound(t *testing.T) {
	a := &Archiver{Store: objectStoreFake{}, Bucket: "images"}
	if _, err := a.Manifest("missing"); !errors.Is(err, commonerrors.ErrArchiveNotFound) {
		t.Errorf("expected ErrArchiveNotFound, got %v", err)
	}
}

func TestInvalidNames(t *testing.T) {
	a := &Archiver{Store: objectStoreFake{}, Bucket: "images"}
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		if _, err := a.Manifest(name); !errors.Is(err, commonerrors.ErrInvalidArgument) {
			t.Errorf("Manifest(%q): expected ErrInvalidArgument, got %v", name, err)
		}
	}
}

func TestListDelete(t *testing.T) {
	src, _ := formattedImage(t)
	a := &Archiver{Store: objectStoreFake{}, Bucket: "images", Compression: compression.XZ}
	for _, name := range []string{"beta", "alpha"} {
		if _, err := a.Push(name, src); err != nil {
			t.Fatalf("Push %s failed: %v", name, err)
		}
	}

	names, err := a.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List() = %v; want [alpha beta]", names)
	}

	if err := a.Delete("alpha"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	names, _ = a.List()
	if len(names) != 1 || names[0] != "beta" {
		t.Errorf("List() after delete = %v; want [beta]", names)
	}
	if err := a.Delete("alpha"); !errors.Is(err, commonerrors.ErrArchiveNotFound) {
		t.Errorf("expected ErrArchiveNotFound, got %v", err)
	}
}

package sfs

import (
	"errors"
	"testing"

	"github.com/deploymenttheory/go-simplefs/internal/disk"
)

func TestFormatGeometry(t *testing.T) {
	tests := []struct {
		blocks      uint32
		inodeBlocks uint32
	}{
		{3, 1},
		{10, 1},
		{20, 2},
		{25, 3},
		{100, 10},
	}
	for _, tt := range tests {
		fs, _ := newMounted(t, tt.blocks)
		sb := fs.SuperBlock()
		if sb.MagicNumber != MagicNumber || sb.Blocks != tt.blocks || sb.InodeBlocks != tt.inodeBlocks || sb.Inodes != tt.inodeBlocks*InodesPerBlock {
			t.Errorf("blocks=%d: superblock %+v", tt.blocks, sb)
		}
		if got, want := fs.FreeBlocks(), int(tt.blocks-1-tt.inodeBlocks); got != want {
			t.Errorf("blocks=%d: FreeBlocks() = %d; want %d", tt.blocks, got, want)
		}
	}
}

func TestFormatClearsDisk(t *testing.T) {
	d := newMemDisk(10)
	for _, block := range d.data {
		for i := range block {
			block[i] = 0xff
		}
	}

	fs := New()
	if err := fs.Format(d); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	for b := 1; b < len(d.data); b++ {
		for i, v := range d.data[b] {
			if v != 0 {
				t.Fatalf("block %d byte %d = %#x after format; want 0", b, i, v)
			}
		}
	}
	if d.Stats().Writes != 10 {
		t.Errorf("Format wrote %d blocks; want 10", d.Stats().Writes)
	}
}

func TestFormatTooSmall(t *testing.T) {
	fs := New()
	err := fs.Format(newMemDisk(2))
	if !errors.Is(err, ErrDiskTooSmall) {
		t.Errorf("expected ErrDiskTooSmall, got %v", err)
	}
}

func TestFormatWhileMounted(t *testing.T) {
	fs, d := newMounted(t, 20)
	if err := fs.Format(d); !errors.Is(err, ErrAlreadyMounted) {
		t.Errorf("expected ErrAlreadyMounted, got %v", err)
	}
	if !fs.Mounted() {
		t.Error("failed format unmounted the session")
	}
}

func TestMountTwice(t *testing.T) {
	fs, d := newMounted(t, 20)
	if err := fs.Mount(d); !errors.Is(err, ErrAlreadyMounted) {
		t.Errorf("expected ErrAlreadyMounted, got %v", err)
	}
}

func TestMountRejectsInvalidSuperblock(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(d *memDisk)
	}{
		{"unformatted", func(d *memDisk) {}},
		{"garbage", func(d *memDisk) {
			for i := range d.data[0] {
				d.data[0][i] = byte(i)
			}
		}},
		{"larger than disk", func(d *memDisk) {
			data, _ := EncodeSuperBlock(NewSuperBlock(40))
			copy(d.data[0], data)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newMemDisk(20)
			tt.prepare(d)

			fs := New()
			err := fs.Mount(d)
			if !errors.Is(err, ErrInvalidSuperblock) {
				t.Errorf("expected ErrInvalidSuperblock, got %v", err)
			}
			if !IsInvalidData(err) {
				t.Error("IsInvalidData() = false")
			}
			if fs.Mounted() {
				t.Error("session mounted after failed mount")
			}
		})
	}
}

func TestMountRejectsCorruptInode(t *testing.T) {
	d := newMemDisk(20)
	fs := New()
	if err := fs.Format(d); err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	var table [InodesPerBlock]Inode
	table[0] = Inode{Valid: 1, Size: 10, Direct: [PointersPerInode]uint32{1}}
	data, _ := EncodeInodeTable(&table)
	copy(d.data[1], data)

	if err := fs.Mount(d); !errors.Is(err, ErrCorruptInode) {
		t.Errorf("expected ErrCorruptInode, got %v", err)
	}
	if fs.Mounted() {
		t.Error("session mounted after failed mount")
	}
}

func TestMountDeviceFailure(t *testing.T) {
	d := newMemDisk(20)
	fs := New()
	if err := fs.Format(d); err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	d.failRead[0] = true
	if err := fs.Mount(d); !IsDeviceError(err) {
		t.Errorf("expected device error, got %v", err)
	}
	if fs.Mounted() {
		t.Error("session mounted after failed mount")
	}
}

func TestMountScanDeviceFailure(t *testing.T) {
	tests := []struct {
		name  string
		block uint32
	}{
		{"second inode table block", 2},
		{"indirect block", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, d := newMounted(t, 20)
			n, _ := fs.Create()
			if _, err := fs.Write(n, pattern((PointersPerInode+1)*BlockSize), 0); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if in, _ := fs.Inode(n); in.Indirect != 8 {
				t.Fatalf("indirect block = %d; want 8", in.Indirect)
			}
			fs.Unmount()

			d.failRead[tt.block] = true
			fs = New()
			err := fs.Mount(d)
			if !IsDeviceError(err) {
				t.Errorf("expected device error, got %v", err)
			}
			if fs.Mounted() {
				t.Error("session mounted after failed scan")
			}
		})
	}
}

func TestFormatDeviceFailure(t *testing.T) {
	d := newMemDisk(10)
	d.failWrite[7] = true

	fs := New()
	if err := fs.Format(d); !IsDeviceError(err) {
		t.Errorf("expected device error, got %v", err)
	}
	if fs.Mounted() {
		t.Error("failed format mounted the session")
	}
}

func TestUnmountIdempotent(t *testing.T) {
	fs, d := newMounted(t, 20)
	fs.Unmount()
	fs.Unmount()
	if fs.Mounted() {
		t.Fatal("session still mounted")
	}
	if fs.FreeBlocks() != 0 {
		t.Error("free map survived unmount")
	}
	if err := fs.Mount(d); err != nil {
		t.Errorf("Mount after Unmount failed: %v", err)
	}
}

func TestOperationsRequireMount(t *testing.T) {
	fs := New()
	buf := make([]byte, 8)

	checks := map[string]error{}
	_, checks["create"] = fs.Create()
	_, checks["stat"] = fs.Stat(0)
	_, checks["read"] = fs.Read(0, buf, 0)
	_, checks["write"] = fs.Write(0, buf, 0)
	checks["remove"] = fs.Remove(0)
	_, checks["inode"] = fs.Inode(0)

	for op, err := range checks {
		if !errors.Is(err, ErrNotMounted) {
			t.Errorf("%s: expected ErrNotMounted, got %v", op, err)
		}
	}
}

func TestRemountRebuildsFreeMap(t *testing.T) {
	fs, d := newMounted(t, 40)

	a, _ := fs.Create()
	b, _ := fs.Create()
	c, _ := fs.Create()
	if _, err := fs.Write(a, pattern(2*BlockSize), 0); err != nil {
		t.Fatalf("Write a failed: %v", err)
	}
	if _, err := fs.Write(b, pattern((PointersPerInode+3)*BlockSize), 0); err != nil {
		t.Fatalf("Write b failed: %v", err)
	}
	if _, err := fs.Write(c, pattern(10), 0); err != nil {
		t.Fatalf("Write c failed: %v", err)
	}
	if err := fs.Remove(a); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	before := append([]bool(nil), fs.free.free...)
	fs = remount(t, fs, d)
	after := fs.free.free

	if len(before) != len(after) {
		t.Fatalf("free map length %d after remount; want %d", len(after), len(before))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("block %d free=%v after remount; want %v", i, after[i], before[i])
		}
	}
}

func TestFileDiskRoundTrip(t *testing.T) {
	path := t.TempDir() + "/image.sfs"
	d, err := disk.Open(path, 20)
	if err != nil {
		t.Fatalf("disk.Open failed: %v", err)
	}

	fs := New()
	if err := fs.Format(d); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if err := fs.Mount(d); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	n, _ := fs.Create()
	if _, err := fs.Write(n, []byte("persisted"), 0); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	fs.Unmount()
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	d, err = disk.OpenExisting(path)
	if err != nil {
		t.Fatalf("disk.OpenExisting failed: %v", err)
	}
	defer d.Close()

	fs = New()
	if err := fs.Mount(d); err != nil {
		t.Fatalf("Mount of reopened image failed: %v", err)
	}
	buf := make([]byte, 32)
	got, err := fs.Read(n, buf, 0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:got]) != "persisted" {
		t.Errorf("Read = %q; want %q", buf[:got], "persisted")
	}
}

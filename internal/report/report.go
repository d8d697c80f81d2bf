// Package report renders file system introspection results
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/deploymenttheory/go-simplefs/internal/common/jsonutil"
	"github.com/deploymenttheory/go-simplefs/internal/common/plistutil"
	"github.com/deploymenttheory/go-simplefs/internal/disk"
	"github.com/deploymenttheory/go-simplefs/internal/sfs"
	"gopkg.in/yaml.v3"
)

// Format selects how a report is rendered
type Format string

const (
	Human Format = "human"
	JSON  Format = "json"
	YAML  Format = "yaml"
	Plist Format = "plist"
)

// ErrUnknownFormat is returned for unsupported report formats
var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat converts a format name into a Format. An empty name selects
// Human.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return Human, nil
	case Human, JSON, YAML, Plist:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Render writes r to w in the given format
func Render(w io.Writer, r *sfs.Report, format Format) error {
	switch format {
	case Human, "":
		return renderHuman(w, r)
	default:
		return encode(w, r, format)
	}
}

// FileInfo describes a single inode for the stat command
type FileInfo struct {
	Inode uint32 `json:"inode" yaml:"inode" plist:"inode"`
	Size  uint32 `json:"size" yaml:"size" plist:"size"`
}

// RenderFileInfo writes info to w in the given format
func RenderFileInfo(w io.Writer, info FileInfo, format Format) error {
	if format == Human || format == "" {
		_, err := fmt.Fprintf(w, "inode %d has size %d bytes\n", info.Inode, info.Size)
		return err
	}
	return encode(w, info, format)
}

// DiskStats mirrors disk.Stats with encoding tags
type DiskStats struct {
	Reads  uint64 `json:"reads" yaml:"reads" plist:"reads"`
	Writes uint64 `json:"writes" yaml:"writes" plist:"writes"`
}

// RenderDiskStats writes the block I/O counters of a session
func RenderDiskStats(w io.Writer, stats disk.Stats, format Format) error {
	if format == Human || format == "" {
		_, err := fmt.Fprintf(w, "%d disk block reads\n%d disk block writes\n", stats.Reads, stats.Writes)
		return err
	}
	return encode(w, DiskStats{Reads: stats.Reads, Writes: stats.Writes}, format)
}

func encode(w io.Writer, v interface{}, format Format) error {
	switch format {
	case JSON:
		return jsonutil.Encode(w, v)
	case YAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	case Plist:
		return plistutil.Encode(w, v, plistutil.FormatXML)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderHuman(w io.Writer, r *sfs.Report) error {
	var b strings.Builder

	validity := "invalid"
	if r.MagicValid {
		validity = "valid"
	}
	fmt.Fprintf(&b, "SuperBlock:\n")
	fmt.Fprintf(&b, "    magic number is %s\n", validity)
	fmt.Fprintf(&b, "    %d blocks\n", r.SuperBlock.Blocks)
	fmt.Fprintf(&b, "    %d inode blocks\n", r.SuperBlock.InodeBlocks)
	fmt.Fprintf(&b, "    %d inodes\n", r.SuperBlock.Inodes)

	for _, inode := range r.Inodes {
		fmt.Fprintf(&b, "Inode %d:\n", inode.Number)
		fmt.Fprintf(&b, "    size: %d bytes\n", inode.Size)
		fmt.Fprintf(&b, "    direct blocks:%s\n", joinBlocks(inode.DirectBlocks))
		if inode.IndirectBlock == 0 {
			continue
		}
		fmt.Fprintf(&b, "    indirect block: %d\n", inode.IndirectBlock)
		fmt.Fprintf(&b, "    indirect data blocks:%s\n", joinBlocks(inode.IndirectBlocks))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func joinBlocks(blocks []uint32) string {
	var b strings.Builder
	for _, blk := range blocks {
		fmt.Fprintf(&b, " %d", blk)
	}
	return b.String()
}

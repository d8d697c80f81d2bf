package cmd

import (
	"fmt"

	"github.com/deploymenttheory/go-simplefs/internal/archive"
	compression "github.com/deploymenttheory/go-simplefs/internal/common/compressionutil"
	commonerrors "github.com/deploymenttheory/go-simplefs/internal/common/errors"
	"github.com/deploymenttheory/go-simplefs/internal/common/fsutil"
	"github.com/deploymenttheory/go-simplefs/internal/config"
	"github.com/deploymenttheory/go-simplefs/internal/logger"
	"github.com/deploymenttheory/go-simplefs/internal/session"
	"github.com/spf13/cobra"
)

var (
	imageCompression string
	imagePullForce   bool
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Archive disk images to the configured object store",
	Long: `Image pushes whole disk images to the storage provider configured under
storage (a local directory or Amazon S3) and pulls them back. Images are
compressed and verified against the SHA-256 digest in their manifest.`,
}

// newArchiver builds an archiver for the configured storage provider
func newArchiver() (*archive.Archiver, error) {
	algorithm, err := compression.ParseAlgorithm(config.Instance.Archive.Compression)
	if err != nil {
		return nil, err
	}
	if imageCompression != "" {
		if algorithm, err = compression.ParseAlgorithm(imageCompression); err != nil {
			return nil, err
		}
	}

	storageCfg, err := config.GetStorageConfig()
	if err != nil {
		return nil, err
	}

	switch cfg := storageCfg.(type) {
	case config.LocalConfig:
		return &archive.Archiver{
			Store:       &archive.LocalObjectStore{Dir: cfg.Dir},
			Bucket:      cfg.Bucket,
			Compression: algorithm,
		}, nil
	case config.S3Config:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("%w: storage.s3.bucket is not set", commonerrors.ErrInvalidArgument)
		}
		store, err := archive.NewS3ObjectStore(archive.S3Options{
			Region:     cfg.Region,
			Endpoint:   cfg.Endpoint,
			AccessKey:  cfg.AccessKey,
			SecretKey:  cfg.SecretKey,
			DisableSSL: cfg.DisableSSL,
		})
		if err != nil {
			return nil, err
		}
		return &archive.Archiver{Store: store, Bucket: cfg.Bucket, Compression: algorithm}, nil
	default:
		return nil, fmt.Errorf("unsupported storage configuration %T", storageCfg)
	}
}

var imagePushCmd = &cobra.Command{
	Use:   "push <name>",
	Short: "Archive the disk image under name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newArchiver()
		if err != nil {
			return err
		}

		s, err := openSession(cmd, openExisting)
		if err != nil {
			return err
		}
		defer s.Close()

		// Encrypted images are archived as stored
		m, err := a.Push(args[0], s.RawDisk())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pushed %s: %d blocks, %s, sha256 %s\n", m.Name, m.Blocks, m.Compression, m.Digest)
		return nil
	},
}

var imagePullCmd = &cobra.Command{
	Use:   "pull <name>",
	Short: "Restore an archived image onto the disk image file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newArchiver()
		if err != nil {
			return err
		}

		path := config.Instance.Disk.Path
		if fsutil.FileExists(path) && !imagePullForce {
			return fmt.Errorf("%w: %s, use --force to replace it", commonerrors.ErrFileExists, path)
		}

		m, err := a.Manifest(args[0])
		if err != nil {
			return err
		}

		s, err := session.Open(session.Options{
			Path:          path,
			Blocks:        m.Blocks,
			EncryptionKey: config.Instance.Disk.EncryptionKey,
			Logger:        logger.Named("session"),
		})
		if err != nil {
			return err
		}
		defer s.Close()

		if _, err := a.Pull(args[0], s.RawDisk()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pulled %s into %s: %d blocks\n", m.Name, path, m.Blocks)
		return nil
	},
}

var imageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newArchiver()
		if err != nil {
			return err
		}
		names, err := a.List()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var imageDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an archived image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newArchiver()
		if err != nil {
			return err
		}
		if err := a.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	imageCmd.PersistentFlags().StringVar(&imageCompression, "compression", "", "Compression: none, gzip, xz or bzip2 (default from config)")
	imagePullCmd.Flags().BoolVarP(&imagePullForce, "force", "f", false, "Replace an existing disk image file")

	imageCmd.AddCommand(imagePushCmd, imagePullCmd, imageListCmd, imageDeleteCmd)
}

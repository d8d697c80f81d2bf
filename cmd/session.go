package cmd

import (
	"github.com/deploymenttheory/go-simplefs/internal/common/fsutil"
	"github.com/deploymenttheory/go-simplefs/internal/config"
	"github.com/deploymenttheory/go-simplefs/internal/logger"
	"github.com/deploymenttheory/go-simplefs/internal/report"
	"github.com/deploymenttheory/go-simplefs/internal/session"
	"github.com/spf13/cobra"
)

// openMode says how the configured image is opened
type openMode int

const (
	// openExisting fails when the image does not exist
	openExisting openMode = iota
	// openOrCreate creates a missing image with the configured block count
	openOrCreate
	// openSized always sizes the image to the configured block count
	openSized
)

// openSession opens the configured disk image. With openOrCreate an existing
// image keeps its size unless --blocks was given.
func openSession(cmd *cobra.Command, mode openMode) (*session.Session, error) {
	opts := session.Options{
		Path:          config.Instance.Disk.Path,
		EncryptionKey: config.Instance.Disk.EncryptionKey,
		Logger:        logger.Named("session"),
	}

	switch mode {
	case openSized:
		opts.Blocks = config.Instance.Disk.Blocks
	case openOrCreate:
		if !fsutil.FileExists(opts.Path) || cmd.Flags().Changed("blocks") {
			opts.Blocks = config.Instance.Disk.Blocks
		}
	}

	return session.Open(opts)
}

// withMountedSession opens and mounts the image, runs fn and closes the image
func withMountedSession(cmd *cobra.Command, fn func(s *session.Session) error) error {
	s, err := openSession(cmd, openExisting)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Mount(); err != nil {
		return err
	}
	return fn(s)
}

// reportFormat returns the --format flag of cmd or the configured default
func reportFormat(cmd *cobra.Command) (report.Format, error) {
	name := config.Instance.Report.Format
	if f := cmd.Flags().Lookup("format"); f != nil && f.Changed {
		name = f.Value.String()
	}
	return report.ParseFormat(name)
}

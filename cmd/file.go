package cmd

import (
	"fmt"
	"strconv"

	commonerrors "github.com/deploymenttheory/go-simplefs/internal/common/errors"
	"github.com/deploymenttheory/go-simplefs/internal/report"
	"github.com/deploymenttheory/go-simplefs/internal/session"
	"github.com/spf13/cobra"
)

func parseInode(arg string) (uint32, error) {
	n, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: inode number %q", commonerrors.ErrInvalidArgument, arg)
	}
	return uint32(n), nil
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Allocate a new, empty inode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMountedSession(cmd, func(s *session.Session) error {
			n, err := s.FileSystem().Create()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created inode %d.\n", n)
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <inode>",
	Short: "Release an inode and its blocks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := parseInode(args[0])
		if err != nil {
			return err
		}
		return withMountedSession(cmd, func(s *session.Session) error {
			if err := s.FileSystem().Remove(n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed inode %d.\n", n)
			return nil
		})
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <inode>",
	Short: "Print the size of an inode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := parseInode(args[0])
		if err != nil {
			return err
		}
		format, err := reportFormat(cmd)
		if err != nil {
			return err
		}
		return withMountedSession(cmd, func(s *session.Session) error {
			size, err := s.FileSystem().Stat(n)
			if err != nil {
				return err
			}
			return report.RenderFileInfo(cmd.OutOrStdout(), report.FileInfo{Inode: n, Size: size}, format)
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <inode>",
	Short: "Write the contents of an inode to standard output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := parseInode(args[0])
		if err != nil {
			return err
		}
		return withMountedSession(cmd, func(s *session.Session) error {
			_, err := s.ReadTo(n, cmd.OutOrStdout())
			return err
		})
	},
}

var copyinCmd = &cobra.Command{
	Use:   "copyin <file> <inode>",
	Short: "Copy a host file into an inode",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := parseInode(args[1])
		if err != nil {
			return err
		}
		return withMountedSession(cmd, func(s *session.Session) error {
			written, err := s.CopyIn(args[0], n)
			if err != nil {
				return fmt.Errorf("copied %d bytes: %w", written, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bytes copied\n", written)
			return nil
		})
	},
}

var copyoutCmd = &cobra.Command{
	Use:   "copyout <inode> <file>",
	Short: "Copy an inode into a host file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := parseInode(args[0])
		if err != nil {
			return err
		}
		return withMountedSession(cmd, func(s *session.Session) error {
			read, err := s.CopyOut(n, args[1])
			if err != nil {
				return fmt.Errorf("copied %d bytes: %w", read, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bytes copied\n", read)
			return nil
		})
	},
}

func init() {
	statCmd.Flags().String("format", "", "Report format: human, json, yaml or plist")
}

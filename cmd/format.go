package cmd

import (
	"fmt"

	"github.com/deploymenttheory/go-simplefs/internal/logger"
	"github.com/deploymenttheory/go-simplefs/internal/report"
	"github.com/deploymenttheory/go-simplefs/internal/sfs"
	"github.com/spf13/cobra"
)

var formatForce bool

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Write a new, empty file system to the disk image",
	Long: `Format creates the disk image if needed, sizes it to --blocks and writes
a fresh superblock and inode table. An image that already holds a valid
file system is only overwritten with --force.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, openSized)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Format(formatForce); err != nil {
			return err
		}

		sb := sfs.NewSuperBlock(s.Disk().Blocks())
		logger.LogInfo("Formatted disk image", map[string]interface{}{
			"blocks":       sb.Blocks,
			"inode_blocks": sb.InodeBlocks,
			"inodes":       sb.Inodes,
		})
		fmt.Fprintln(cmd.OutOrStdout(), "disk formatted.")
		return nil
	},
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Print the superblock and every valid inode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := reportFormat(cmd)
		if err != nil {
			return err
		}

		s, err := openSession(cmd, openExisting)
		if err != nil {
			return err
		}
		defer s.Close()

		rep, err := sfs.Debug(s.Disk())
		if err != nil {
			return err
		}
		return report.Render(cmd.OutOrStdout(), rep, format)
	},
}

func init() {
	formatCmd.Flags().BoolVarP(&formatForce, "force", "f", false, "Overwrite an existing file system")
	debugCmd.Flags().String("format", "", "Report format: human, json, yaml or plist")
}

package cmd

import (
	"os"

	"github.com/deploymenttheory/go-simplefs/internal/report"
	"github.com/deploymenttheory/go-simplefs/internal/shell"
	"github.com/spf13/cobra"
)

var shellNoPrompt bool

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Explore the disk image interactively",
	Long: `Shell opens the disk image, creating it with --blocks blocks if it does
not exist, and reads commands from standard input. Type help for the list
of commands. The disk block counters are printed on exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := reportFormat(cmd)
		if err != nil {
			return err
		}

		s, err := openSession(cmd, openOrCreate)
		if err != nil {
			return err
		}
		defer s.Close()

		opts := []shell.Option{shell.WithReportFormat(format)}
		if shellNoPrompt || !isTerminal(os.Stdin) {
			opts = append(opts, shell.WithoutPrompt())
		}

		out := cmd.OutOrStdout()
		if err := shell.New(s, cmd.InOrStdin(), out, opts...).Run(); err != nil {
			return err
		}
		return report.RenderDiskStats(out, s.Stats(), report.Human)
	},
}

// isTerminal reports whether f is a character device
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func init() {
	shellCmd.Flags().BoolVar(&shellNoPrompt, "no-prompt", false, "Do not print the prompt")
	shellCmd.Flags().String("format", "", "Report format for debug and stat: human, json, yaml or plist")
}

package cmd

import (
	"fmt"

	"github.com/deploymenttheory/go-simplefs/internal/config"
	"github.com/deploymenttheory/go-simplefs/internal/logger"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "0.1.0"

var cfgFile string

// rootCmd represents the base CLI command
var rootCmd = &cobra.Command{
	Use:   "simplefs",
	Short: "Create and inspect SimpleFS disk images",
	Long: `simplefs manages SimpleFS disk images: a superblock, an inode table
and data blocks addressed through five direct pointers and one indirect
block per inode.

Images can be formatted, inspected, scripted, explored in an interactive
shell and archived to a local directory or Amazon S3.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(cfgFile); err != nil {
			return err
		}
		// Pick up flags bound to viper keys
		if err := config.Reload(); err != nil {
			return err
		}

		return logger.InitLogger(logger.LoggerConfig{
			Debug:     config.Instance.Debug,
			LogFormat: config.Instance.LogFormat,
			LogFile:   config.Instance.LogFile,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		logger.LogError("Command execution failed", err, nil)
		return err
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()

	// Config file flag
	flags.StringVar(&cfgFile, "config", "", "config file (default is search in standard locations)")

	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-format", "human", "Log format: json or human")
	flags.StringP("disk", "d", "image.sfs", "Disk image file")
	flags.Uint32("blocks", 200, "Number of blocks when creating or resizing the image")

	// Bind flags to viper settings
	v := config.Viper()
	_ = v.BindPFlag("debug", flags.Lookup("debug"))
	_ = v.BindPFlag("log_format", flags.Lookup("log-format"))
	_ = v.BindPFlag("disk.path", flags.Lookup("disk"))
	_ = v.BindPFlag("disk.blocks", flags.Lookup("blocks"))

	rootCmd.AddCommand(
		versionCmd,
		formatCmd,
		debugCmd,
		createCmd,
		removeCmd,
		statCmd,
		catCmd,
		copyinCmd,
		copyoutCmd,
		shellCmd,
		runCmd,
		imageCmd,
		configCmd,
	)
}

// versionCmd shows the application version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "simplefs v%s\n", Version)
	},
}

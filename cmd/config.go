package cmd

import (
	"fmt"

	"github.com/deploymenttheory/go-simplefs/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and save the effective configuration",
}

var configSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Write the effective configuration to a YAML, JSON or TOML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SaveConfig(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "configuration saved to %s\n", args[0])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file in use",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if !config.ConfigLoaded {
			fmt.Fprintln(cmd.OutOrStdout(), "no configuration file loaded, using defaults")
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.ConfigFile)
	},
}

func init() {
	configCmd.AddCommand(configSaveCmd, configPathCmd)
}

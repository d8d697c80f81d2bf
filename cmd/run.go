package cmd

import (
	"fmt"
	"strings"

	commonerrors "github.com/deploymenttheory/go-simplefs/internal/common/errors"
	"github.com/deploymenttheory/go-simplefs/internal/common/jsonutil"
	"github.com/deploymenttheory/go-simplefs/internal/config"
	"github.com/deploymenttheory/go-simplefs/internal/logger"
	"github.com/deploymenttheory/go-simplefs/internal/script"
	"github.com/spf13/cobra"
)

var (
	runVars     []string
	runVarsFile string
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a YAML or JSON script of file system steps",
	Long: `Run loads a script, validates every step and executes the steps in
order against the disk image. A disk section in the script overrides the
configured image. Variables can be set with --var name=value or loaded
from a JSON object with --vars-file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.LogInfo("Executing script", map[string]interface{}{
			"file": args[0],
		})

		s, err := script.LoadScript(args[0])
		if err != nil {
			return err
		}
		if runVarsFile != "" {
			vars, err := jsonutil.ReadJSONFile(runVarsFile)
			if err != nil {
				return err
			}
			s.Variables = jsonutil.MergeJSON(s.Variables, vars)
		}
		for _, kv := range runVars {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return fmt.Errorf("%w: --var %q is not name=value", commonerrors.ErrInvalidArgument, kv)
			}
			s.Variables[name] = value
		}

		if errs := script.ValidateScript(s); len(errs) > 0 {
			for _, err := range errs {
				logger.LogError("Script validation error", err, nil)
			}
			return fmt.Errorf("script validation failed with %d errors: %w", len(errs), errs[0])
		}

		applyDiskSpec(s.Disk)

		format, err := reportFormat(cmd)
		if err != nil {
			return err
		}

		sess, err := openSession(cmd, openOrCreate)
		if err != nil {
			return err
		}
		defer sess.Close()

		runner := script.NewRunner(sess, cmd.OutOrStdout())
		runner.Format = format
		return runner.Execute(s)
	},
}

// applyDiskSpec lets a script select its own image
func applyDiskSpec(spec script.DiskSpec) {
	if spec.Path != "" {
		config.Instance.Disk.Path = spec.Path
	}
	if spec.Blocks != 0 {
		config.Instance.Disk.Blocks = spec.Blocks
	}
	if spec.EncryptionKey != "" {
		config.Instance.Disk.EncryptionKey = spec.EncryptionKey
	}
}

func init() {
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Set a script variable (name=value)")
	runCmd.Flags().StringVar(&runVarsFile, "vars-file", "", "JSON file of script variables")
	runCmd.Flags().String("format", "", "Report format for debug and stat steps: human, json, yaml or plist")
}

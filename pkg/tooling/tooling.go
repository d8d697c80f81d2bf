// Package tooling is the public API for running SimpleFS scripts from other
// Go programs
package tooling

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-simplefs/internal/common/fsutil"
	"github.com/deploymenttheory/go-simplefs/internal/config"
	"github.com/deploymenttheory/go-simplefs/internal/logger"
	"github.com/deploymenttheory/go-simplefs/internal/report"
	"github.com/deploymenttheory/go-simplefs/internal/script"
	"github.com/deploymenttheory/go-simplefs/internal/session"
)

// Version of the tooling API
const Version = "0.1.0"

// InitOptions contains options for initializing the tooling API
type InitOptions struct {
	ConfigFile  string // Path to configuration file
	Debug       bool   // Enable debug logging
	LogFormat   string // Log format: "human" or "json"
	LogFile     string // Path to log file
	SuppressLog bool   // Suppress all logging
}

// ScriptResult contains the results of a script execution
type ScriptResult struct {
	Success      bool                   // Whether every step completed
	ErrorMessage string                 // Error message if any
	Output       string                 // Output of read, stat and debug steps
	Variables    map[string]interface{} // Final state of variables after execution
	Reads        uint64                 // Disk blocks read
	Writes       uint64                 // Disk blocks written
}

// RunOptions selects the disk image a script runs against. Empty fields fall
// back to the script's disk section and then to the configuration.
type RunOptions struct {
	DiskPath      string
	Blocks        uint32
	EncryptionKey string
	ReportFormat  string
	Variables     map[string]interface{}
}

var initialized bool

// Initialize initializes the tooling API with the given options
func Initialize(options InitOptions) error {
	if initialized {
		return nil
	}

	configErr := config.Initialize(options.ConfigFile)

	if options.Debug {
		config.Instance.Debug = true
	}
	if options.LogFormat != "" {
		config.Instance.LogFormat = options.LogFormat
	}
	if options.LogFile != "" {
		config.Instance.LogFile = options.LogFile
	}

	if !options.SuppressLog {
		logConfig := logger.LoggerConfig{
			Debug:     config.Instance.Debug,
			LogFormat: config.Instance.LogFormat,
			LogFile:   config.Instance.LogFile,
		}
		if err := logger.InitLogger(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.LogInfo("Tooling API initialized", map[string]interface{}{
			"config_file": options.ConfigFile,
			"debug":       options.Debug,
			"log_format":  options.LogFormat,
		})
		if configErr != nil {
			logger.LogWarn("Configuration initialization warning", map[string]interface{}{
				"error": configErr.Error(),
			})
		}
	}

	initialized = true
	return nil
}

// DefaultOptions returns the default initialization options
func DefaultOptions() InitOptions {
	return InitOptions{
		LogFormat:   "human",
		SuppressLog: true,
	}
}

func ensureInitialized() error {
	if initialized {
		return nil
	}
	if err := Initialize(DefaultOptions()); err != nil {
		return fmt.Errorf("failed to initialize tooling API: %w", err)
	}
	return nil
}

// RunScript executes the script stored in scriptFile
func RunScript(scriptFile string, opts RunOptions) (*ScriptResult, error) {
	if err := ensureInitialized(); err != nil {
		return nil, err
	}

	logger.LogInfo("Executing script", map[string]interface{}{
		"file": scriptFile,
	})

	s, err := script.LoadScript(scriptFile)
	if err != nil {
		return &ScriptResult{ErrorMessage: fmt.Sprintf("Failed to load script: %s", err)}, err
	}
	return run(s, opts)
}

// RunScriptFromYAML executes a script given as a YAML document
func RunScriptFromYAML(scriptYAML string, opts RunOptions) (*ScriptResult, error) {
	if err := ensureInitialized(); err != nil {
		return nil, err
	}

	s, err := script.ParseScript(strings.NewReader(scriptYAML), "yaml")
	if err != nil {
		return &ScriptResult{ErrorMessage: fmt.Sprintf("Failed to load script: %s", err)}, err
	}
	return run(s, opts)
}

func run(s *script.Script, opts RunOptions) (*ScriptResult, error) {
	for k, v := range opts.Variables {
		s.Variables[k] = v
	}

	if errs := script.ValidateScript(s); len(errs) > 0 {
		var messages []string
		for _, err := range errs {
			messages = append(messages, err.Error())
		}
		message := fmt.Sprintf("Script validation failed with %d errors: %s", len(errs), strings.Join(messages, "; "))
		return &ScriptResult{ErrorMessage: message}, fmt.Errorf("%s", message)
	}

	format, err := report.ParseFormat(firstNonEmpty(opts.ReportFormat, config.Instance.Report.Format))
	if err != nil {
		return &ScriptResult{ErrorMessage: err.Error()}, err
	}

	sessOpts := session.Options{
		Path:          firstNonEmpty(opts.DiskPath, s.Disk.Path, config.Instance.Disk.Path),
		Blocks:        opts.Blocks,
		EncryptionKey: firstNonEmpty(opts.EncryptionKey, s.Disk.EncryptionKey, config.Instance.Disk.EncryptionKey),
		Logger:        logger.Named("session"),
	}
	if sessOpts.Blocks == 0 {
		sessOpts.Blocks = s.Disk.Blocks
	}
	if sessOpts.Blocks == 0 && !fsutil.FileExists(sessOpts.Path) {
		sessOpts.Blocks = config.Instance.Disk.Blocks
	}

	sess, err := session.Open(sessOpts)
	if err != nil {
		return &ScriptResult{ErrorMessage: fmt.Sprintf("Failed to open disk image: %s", err)}, err
	}

	var out bytes.Buffer
	runner := script.NewRunner(sess, &out)
	runner.Format = format
	execErr := runner.Execute(s)

	stats := sess.Stats()
	closeErr := sess.Close()
	logger.LogDiskStats("Script disk activity", sessOpts.Path, stats, map[string]interface{}{
		"script":  s.Name,
		"success": execErr == nil,
	})

	result := &ScriptResult{
		Success:   execErr == nil && closeErr == nil,
		Output:    out.String(),
		Variables: s.Variables,
		Reads:     stats.Reads,
		Writes:    stats.Writes,
	}
	if execErr != nil {
		result.ErrorMessage = fmt.Sprintf("Script execution failed: %s", execErr)
		return result, execErr
	}
	if closeErr != nil {
		result.ErrorMessage = fmt.Sprintf("Failed to close disk image: %s", closeErr)
		return result, closeErr
	}
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetVersion returns the current version of the tooling API
func GetVersion() string {
	return Version
}

// Shutdown performs any necessary cleanup before the application exits
func Shutdown() error {
	if initialized {
		logger.LogInfo("Tooling API shutting down", nil)
		_ = logger.Sync()
	}
	return nil
}

// Package logger holds the process-wide zap logger shared by the simplefs
// commands, the script runner and the tooling API.
package logger

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/deploymenttheory/go-simplefs/internal/common/fsutil"
	"github.com/deploymenttheory/go-simplefs/internal/disk"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger discards everything until InitLogger or SetLogger runs
var Logger = zap.NewNop().Sugar()

// LoggerConfig selects the level, encoding and optional file sink
type LoggerConfig struct {
	Debug     bool   // Enable debug level logging
	LogFormat string // "json" or "human"
	LogFile   string // Path to log file (optional)
}

// InitLogger builds the global logger. Logs go to stderr so that file
// contents copied to stdout by cat and copyout stay clean.
func InitLogger(config LoggerConfig) error {
	var zapConfig zap.Config
	if config.LogFormat == "json" {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zapConfig.DisableStacktrace = true
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zapConfig.OutputPaths = []string{"stderr"}
	if config.LogFile != "" {
		if err := fsutil.CreateDirIfNotExists(filepath.Dir(config.LogFile)); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, config.LogFile)
	}

	if config.Debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	l, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	Logger = l.Sugar()
	return nil
}

// SetLogger replaces the global logger, e.g. with a zaptest logger
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	Logger = l
}

// Named returns a child of the global logger for one component, such as
// "session" or "archive"
func Named(component string) *zap.SugaredLogger {
	return Logger.Named(component)
}

func LogInfo(message string, fields map[string]interface{}) {
	Logger.Infow(message, flattenFields(fields)...)
}

func LogWarn(message string, fields map[string]interface{}) {
	Logger.Warnw(message, flattenFields(fields)...)
}

func LogError(message string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	Logger.Errorw(message, flattenFields(fields)...)
}

func LogDebug(message string, fields map[string]interface{}) {
	Logger.Debugw(message, flattenFields(fields)...)
}

// LogDiskStats records the block transfer counters of a disk image at info
// level alongside any extra fields
func LogDiskStats(message string, path string, stats disk.Stats, fields map[string]interface{}) {
	all := map[string]interface{}{
		"path":   path,
		"reads":  stats.Reads,
		"writes": stats.Writes,
	}
	for k, v := range fields {
		all[k] = v
	}
	LogInfo(message, all)
}

// flattenFields turns fields into zap key-value pairs in key order
func flattenFields(fields map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	flat := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		flat = append(flat, k, fields[k])
	}
	return flat
}

// Sync flushes any buffered log entries
func Sync() error {
	return Logger.Sync()
}

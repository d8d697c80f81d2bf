package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/deploymenttheory/go-simplefs/internal/common/fsutil"
	"github.com/deploymenttheory/go-simplefs/internal/common/osutil"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for config files and directories
	AppName = "simplefs"

	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "SIMPLEFS"
)

// S3Config holds Amazon S3 (or compatible) storage settings
type S3Config struct {
	Bucket     string `mapstructure:"bucket"`
	Region     string `mapstructure:"region"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Endpoint   string `mapstructure:"endpoint"`    // For custom S3-compatible storage
	DisableSSL bool   `mapstructure:"disable_ssl"` // For development/testing
}

// LocalConfig holds settings for images archived to a local directory
type LocalConfig struct {
	Dir    string `mapstructure:"dir"`
	Bucket string `mapstructure:"bucket"`
}

// AppConfig holds the application configuration
type AppConfig struct {
	// Core settings
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// Disk image settings
	Disk struct {
		Path          string `mapstructure:"path"`
		Blocks        uint32 `mapstructure:"blocks"`
		EncryptionKey string `mapstructure:"encryption_key"` // hex encoded AES-XTS key
	} `mapstructure:"disk"`

	Report struct {
		Format string `mapstructure:"format"` // human, json, yaml, plist
	} `mapstructure:"report"`

	Archive struct {
		Compression string `mapstructure:"compression"` // none, gzip, xz, bzip2
	} `mapstructure:"archive"`

	// Storage settings
	Storage struct {
		Provider string      `mapstructure:"provider"` // local, s3
		Local    LocalConfig `mapstructure:"local"`
		S3       S3Config    `mapstructure:"s3"`
	} `mapstructure:"storage"`
}

// Global variables
var (
	// Global configuration instance
	Instance AppConfig

	// Status indicators
	ConfigLoaded bool
	ConfigFile   string

	// Viper instance
	v *viper.Viper

	// Ensure thread safety
	initOnce sync.Once
)

// Initialize sets up the configuration system
func Initialize(cfgFile string) error {
	var err error

	initOnce.Do(func() {
		// keep flag bindings made through Viper before initialization
		if v == nil {
			v = viper.New()
		}
		err = load(v, cfgFile)
	})

	return err
}

// Viper returns the viper instance backing Instance, so that command line
// flags can be bound to configuration keys
func Viper() *viper.Viper {
	if v == nil {
		v = viper.New()
		setDefaults(v)
	}
	return v
}

// Reload re-reads the configuration into Instance. It is used after flags
// bound with BindPFlag have been parsed.
func Reload() error {
	if v == nil {
		return fmt.Errorf("configuration not initialized")
	}
	if err := v.Unmarshal(&Instance); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}
	return nil
}

func load(v *viper.Viper, cfgFile string) error {
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		addSearchPaths(v)
	}

	// SIMPLEFS_DISK_PATH overrides disk.path
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var err error
	if readErr := v.ReadInConfig(); readErr != nil {
		if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
			// Only capture error if the config file was found but couldn't be read
			err = fmt.Errorf("error reading config file: %w", readErr)
		}
		ConfigLoaded = false
		ConfigFile = ""
	} else {
		ConfigLoaded = true
		ConfigFile = v.ConfigFileUsed()
	}

	Instance = AppConfig{}
	if unmarshalErr := v.Unmarshal(&Instance); unmarshalErr != nil {
		return fmt.Errorf("error parsing config: %w", unmarshalErr)
	}

	ensureDirectories()
	return err
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Core settings
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")
	v.SetDefault("log_file", "")

	v.SetDefault("disk.path", "image.sfs")
	v.SetDefault("disk.blocks", 200)
	v.SetDefault("disk.encryption_key", "")

	v.SetDefault("report.format", "human")
	v.SetDefault("archive.compression", "gzip")

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local.bucket", "images")
	dataDir, err := fsutil.GetDataDir(AppName)
	if err == nil {
		v.SetDefault("storage.local.dir", filepath.Join(dataDir, "archive"))
	} else {
		v.SetDefault("storage.local.dir", "archive")
	}
	v.SetDefault("storage.s3.region", "us-east-1")
}

// addSearchPaths adds config search paths
func addSearchPaths(v *viper.Viper) {
	// Always check current directory first
	v.AddConfigPath(".")

	if osutil.IsDevEnvironment() {
		configDir, err := fsutil.GetConfigDir(AppName)
		if err == nil {
			v.AddConfigPath(configDir)
		}
		return
	}

	if osutil.IsRunningInPipeline() {
		v.AddConfigPath("/etc/" + AppName)
		return
	}

	configDir, err := fsutil.GetConfigDir(AppName)
	if err == nil {
		v.AddConfigPath(configDir)
	}

	systemConfigDir, err := fsutil.GetSystemConfigDir(AppName)
	if err == nil {
		v.AddConfigPath(systemConfigDir)
	}
}

// ensureDirectories creates necessary directories based on configuration
func ensureDirectories() {
	// Don't create directories in a pipeline environment unless explicitly requested
	if osutil.IsRunningInPipeline() && os.Getenv("CREATE_DIRS") != "true" {
		return
	}

	if Instance.LogFile != "" {
		_ = fsutil.CreateDirIfNotExists(filepath.Dir(Instance.LogFile))
	}
}

// GetStorageConfig returns the configuration for the specified storage provider
func GetStorageConfig() (interface{}, error) {
	switch Instance.Storage.Provider {
	case "local":
		return Instance.Storage.Local, nil
	case "s3":
		return Instance.Storage.S3, nil
	case "":
		return nil, fmt.Errorf("no storage provider specified")
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", Instance.Storage.Provider)
	}
}

// SaveConfig saves the effective configuration to a file. The format follows
// the file extension.
func SaveConfig(filePath string) error {
	saveV := viper.New()
	saveV.SetConfigFile(filePath)

	for k, val := range Viper().AllSettings() {
		saveV.Set(k, val)
	}

	configDir := filepath.Dir(filePath)
	if err := fsutil.CreateDirIfNotExists(configDir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return saveV.WriteConfig()
}

package script

// Script is a named sequence of file system steps run against one disk image
type Script struct {
	// Name of the script (required)
	Name string `mapstructure:"name"`

	// Optional description of the script
	Description string `mapstructure:"description,omitempty"`

	// Version of the script definition
	Version string `mapstructure:"version,omitempty"`

	// Author or creator of the script
	Author string `mapstructure:"author,omitempty"`

	// Disk overrides the configured image for this script
	Disk DiskSpec `mapstructure:"disk,omitempty"`

	// Ordered list of steps to execute
	Steps []Step `mapstructure:"steps"`

	// Variables that can be referenced in step parameters. Step outputs are
	// added here as the script runs.
	Variables map[string]interface{} `mapstructure:"variables,omitempty"`
}

// DiskSpec selects the image a script runs against
type DiskSpec struct {
	Path          string `mapstructure:"path,omitempty"`
	Blocks        uint32 `mapstructure:"blocks,omitempty"`
	EncryptionKey string `mapstructure:"encryption_key,omitempty"`
}

// Step is a single operation in a script
type Step struct {
	// Unique name for the step (required)
	Name string `mapstructure:"name"`

	// Type of operation to perform (required)
	Type string `mapstructure:"type"`

	// Optional human-readable description of the step
	Description string `mapstructure:"description,omitempty"`

	// Optional template that must render to true, yes or 1 for the step to run
	Condition string `mapstructure:"condition,omitempty"`

	// Remaining keys are the step parameters
	Parameters map[string]interface{} `mapstructure:",remain"`
}

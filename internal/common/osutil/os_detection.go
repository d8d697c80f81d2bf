package osutil

import (
	"os"
	"runtime"
)

// GetOSType returns the current operating system type
func GetOSType() string {
	return runtime.GOOS
}

// IsDevEnvironment checks if the application is running in a development environment
// based on environment variables
func IsDevEnvironment() bool {
	return os.Getenv("SIMPLEFS_ENV") == "development" ||
		os.Getenv("SIMPLEFS_DEV") == "true" ||
		os.Getenv("DEV") == "true"
}

// IsRunningInPipeline returns true if running in a CI/CD pipeline environment
func IsRunningInPipeline() bool {
	return os.Getenv("CI") == "true" ||
		os.Getenv("PIPELINE") == "true" ||
		os.Getenv("GITHUB_ACTIONS") == "true" ||
		os.Getenv("JENKINS_URL") != ""
}

package main

import (
	"os"

	"github.com/deploymenttheory/go-simplefs/cmd"
)

func main() {
	// Configuration and logging are initialized by the root command
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

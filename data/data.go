// Package data provides the foundational data layer for all file I/O.
// It encapsulates config and catalog access behind strongly-typed structs.
//
// Architecture: cmd → service → data
// The data layer is the only layer that should directly access files or viper.
package data

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// GetConfigDir returns the application configuration directory.
// Uses os.UserConfigDir() for cross-platform support.
// Example: ~/.config/prepdash on Linux, ~/Library/Application Support/prepdash on macOS
func GetConfigDir() string {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory if UserConfigDir fails
		userConfigDir, _ = homedir.Dir()
		userConfigDir = filepath.Join(userConfigDir, ".config")
	}
	return filepath.Join(userConfigDir, "prepdash")
}

// GetConfigFilePath returns the path to the configuration file.
func GetConfigFilePath() string {
	return filepath.Join(GetConfigDir(), "prepdash.yaml")
}

// GetModulesFilePath returns the path to the module catalog file.
func GetModulesFilePath() string {
	return filepath.Join(GetConfigDir(), "modules.yaml")
}

// GetConvoDirPath returns the path to the conversation directory.
func GetConvoDirPath() string {
	return filepath.Join(GetConfigDir(), "convo")
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	return os.MkdirAll(GetConfigDir(), 0750)
}

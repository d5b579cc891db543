package data

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ConfigStore provides typed access to prepdash.yaml configuration.
// It wraps viper internally and exposes only typed interfaces.
type ConfigStore struct {
	v *viper.Viper
}

// NewConfigStore creates a new ConfigStore using the existing viper
// configuration. This reuses whatever config file viper has already
// loaded.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{v: viper.GetViper()}
}

// SetConfigFile sets the configuration file path and reads it in if it
// exists.
func (c *ConfigStore) SetConfigFile(path string) error {
	c.v.SetConfigFile(path)
	c.v.AutomaticEnv() // Read in environment variables that match

	// Set defaults in viper *before* reading the config so these keys
	// exist even if not in the file
	c.v.SetDefault("log.level", "info")
	c.v.SetDefault("server.endpoint", "http://localhost:3000")
	c.v.SetDefault("resume.poll_interval", "2s")
	c.v.SetDefault("resume.poll_ceiling", "5m")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := c.v.ReadInConfig(); err != nil {
		return err
	}
	return nil
}

// ConfigFileUsed returns the path to the config file being used.
func (c *ConfigStore) ConfigFileUsed() string {
	return c.v.ConfigFileUsed()
}

// Save persists the current configuration.
func (c *ConfigStore) Save() error {
	configFile := c.v.ConfigFileUsed()
	if configFile == "" {
		configFile = GetConfigFilePath()
		c.v.SetConfigFile(configFile)
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return c.v.WriteConfigAs(configFile)
}

// Export saves the current configuration to the specified path.
func (c *ConfigStore) Export(path string) error {
	// Use a fresh viper instance so the current config file path is untouched
	exportViper := viper.New()
	for k, v := range c.v.AllSettings() {
		exportViper.Set(k, v)
	}
	exportViper.SetConfigFile(path)
	return exportViper.WriteConfig()
}

// Import loads configuration from the specified path and merges it into
// the current configuration.
func (c *ConfigStore) Import(path string) error {
	importViper := viper.New()
	importViper.SetConfigFile(path)
	if err := importViper.ReadInConfig(); err != nil {
		return err
	}
	for k, v := range importViper.AllSettings() {
		c.v.Set(k, v)
	}
	return c.Save()
}

// GetEndpoint returns the generation backend base URL.
func (c *ConfigStore) GetEndpoint() string {
	return c.v.GetString("server.endpoint")
}

// SetEndpoint sets the generation backend base URL.
func (c *ConfigStore) SetEndpoint(endpoint string) error {
	c.v.Set("server.endpoint", endpoint)
	return c.Save()
}

// GetConcurrencyOverride returns the local fan-out ceiling override.
// Zero means ask the server's admin config.
func (c *ConfigStore) GetConcurrencyOverride() int {
	return c.v.GetInt("generate.concurrency")
}

// SetConcurrencyOverride sets the local fan-out ceiling override.
func (c *ConfigStore) SetConcurrencyOverride(n int) error {
	c.v.Set("generate.concurrency", n)
	return c.Save()
}

// GetPollInterval returns the resume poll cadence.
func (c *ConfigStore) GetPollInterval() time.Duration {
	return c.v.GetDuration("resume.poll_interval")
}

// GetPollCeiling returns the absolute resume polling time limit.
func (c *ConfigStore) GetPollCeiling() time.Duration {
	return c.v.GetDuration("resume.poll_ceiling")
}

// GetLogLevel returns the configured log level.
func (c *ConfigStore) GetLogLevel() string {
	return c.v.GetString("log.level")
}

// SetLogLevel sets the configured log level.
func (c *ConfigStore) SetLogLevel(level string) error {
	c.v.Set("log.level", level)
	return c.Save()
}

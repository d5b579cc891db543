// File: cmd/root.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/activebook/prepdash/service"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Hardcode the version string here
	version     = "v0.3.1"
	versionFlag bool

	cfgFile           string // To hold the path to the config file if specified via flag
	appConfigDir      string // Store the calculated config directory path
	appConfigFilePath string // Store the calculated config file path
	debugMode         bool   // Flag to enable debug logging

	// Global logger instance, configured by setupLogging
	logger = service.GetLogger()

	// Global cmd instance, to be used by subcommands
	rootCmd = &cobra.Command{
		Use:   "prepdash",
		Short: "A CLI client for interview-prep study content generation",
		Long: `prepdash streams AI-generated interview study content from your prepdash
server: an opening brief, revision topics, multiple-choice questions and
rapid-fire Q&A. It can resume generations already running server-side and
keeps review conversations cached for fast switching.`,
		Run: func(cmd *cobra.Command, args []string) {
			if versionFlag {
				fmt.Printf("%s %s\n", cmd.CommandPath(), version)
				return
			}
			cmd.Help()
		},
	}
)

func Execute() {
	// Ensure the config directory exists before Cobra/Viper try to read
	// from it
	if appConfigDir != "" {
		if err := os.MkdirAll(appConfigDir, 0750); err != nil {
			service.Errorf("Error creating config directory '%s': %v\n", appConfigDir, err)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		service.Errorf("'%s'\n", err)
		os.Exit(1)
	}
}

func init() {
	// Calculate config paths early
	initConfigPaths()

	// Initialize Viper configuration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "Enable debug logging (overrides config file level)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is %s)", appConfigFilePath))
	rootCmd.Flags().BoolVarP(&versionFlag, "version", "v", false, "Print the version number")

	// Disable the default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func initConfigPaths() {
	// Prefer os.UserConfigDir()
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		service.Warnf("Warning: Could not find user config dir, falling back to home directory.%v\n", err)
		userConfigDir, err = homedir.Dir()
		cobra.CheckErr(err) // If home dir also fails, panic
	}

	// App specific directory: e.g., ~/.config/prepdash
	appConfigDir = filepath.Join(userConfigDir, "prepdash")
	appConfigFilePath = filepath.Join(appConfigDir, "prepdash.yaml")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(appConfigDir)
		viper.SetConfigName("prepdash")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper *before* reading the config so these keys
	// exist even if not in the file
	viper.SetDefault("log.level", "info")
	viper.SetDefault("server.endpoint", "http://localhost:3000")
	viper.SetDefault("resume.poll_interval", "2s")
	viper.SetDefault("resume.poll_ceiling", "5m")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			service.Debugf("Config file not found in %s or via --config flag. Using defaults/env vars.", appConfigDir)
		} else if os.IsNotExist(err) {
			service.Debugf("Config file path %s does not exist. Using defaults/env vars.", viper.ConfigFileUsed())
		} else {
			service.Errorf("Error reading config file (%s): %v", viper.ConfigFileUsed(), err)
		}
	}

	setupLogging()
}

// setupLogging configures the global logger based on Viper settings and flags.
func setupLogging() {
	service.InitLogger()

	logLevelStr := viper.GetString("log.level")

	// Flag overrides config
	level := log.InfoLevel
	if debugMode {
		level = log.DebugLevel
	} else {
		var err error
		level, err = log.ParseLevel(logLevelStr)
		if err != nil {
			service.Warnf("Invalid log level '%s' in config, using 'info': %v", logLevelStr, err)
			level = log.InfoLevel
		}
	}
	logger.SetLevel(level)
}

package cmd

import (
	"fmt"
	"strconv"

	"github.com/activebook/prepdash/data"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage prepdash configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowCmd.RunE(cmd, args)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := data.NewConfigStore()
		fmt.Printf("%s %s\n", keyColor("endpoint:"), store.GetEndpoint())
		concurrency := "server-configured"
		if n := store.GetConcurrencyOverride(); n > 0 {
			concurrency = strconv.Itoa(n)
		}
		fmt.Printf("%s %s\n", keyColor("concurrency:"), concurrency)
		fmt.Printf("%s %s\n", keyColor("poll interval:"), store.GetPollInterval())
		fmt.Printf("%s %s\n", keyColor("poll ceiling:"), store.GetPollCeiling())
		fmt.Printf("%s %s\n", keyColor("log level:"), store.GetLogLevel())
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := data.NewConfigStore()
		path := store.ConfigFileUsed()
		if path == "" {
			path = data.GetConfigFilePath()
		}
		fmt.Println(path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  `Set a configuration value. Keys: endpoint, concurrency, log-level.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := data.NewConfigStore()
		key, value := args[0], args[1]
		switch key {
		case "endpoint":
			return store.SetEndpoint(value)
		case "concurrency":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("concurrency must be a non-negative integer, got %q", value)
			}
			return store.SetConcurrencyOverride(n)
		case "log-level":
			return store.SetLogLevel(value)
		default:
			return fmt.Errorf("unknown config key %q (known: endpoint, concurrency, log-level)", key)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
}

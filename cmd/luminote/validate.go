package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luminote/luminote/config"
)

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration file without starting the server.

Examples:
  luminote validate
  luminote validate --config /etc/luminote/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("%s Configuration invalid: %v\n", crossMark, err)
		return err
	}

	fmt.Printf("%s Configuration valid\n", checkMark)
	fmt.Printf("  Server:     %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Database:   %s\n", cfg.Database.Path)
	if cfg.Redis.Enabled {
		fmt.Printf("  Redis:      %s\n", cfg.Redis.Addr)
	} else {
		fmt.Printf("  Redis:      disabled (in-process cache)\n")
	}
	fmt.Printf("  Chat model: %s\n", cfg.Providers.Chat.Model)
	fmt.Printf("  Math model: %s\n", cfg.Providers.Math.Model)
	if cfg.Profile.Enabled {
		fmt.Printf("  Profile:    %s\n", cfg.Profile.CronSpec)
	}
	return nil
}

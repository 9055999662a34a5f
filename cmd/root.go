package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/deckforge/chainsale/chainsale"
	"github.com/deckforge/chainsale/chainsale/logger"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath string
	cfg        *chainsale.Config
)

var rootCmd = &cobra.Command{
	Use:           "chainsale",
	Short:         "Dutch auction market for a fifty deck card collection",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := chainsale.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Setup("ChainSale", cfg.Log.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to config")
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
}

// timed logs how long a command ran and how it ended.
func timed(run func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		err := run(cmd, args)
		logger.LogCommand(cmd.Name(), time.Since(start), err)
		return err
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

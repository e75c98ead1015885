package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sgloader",
	Short: "Intraday screener loader",
	Long: `Intraday screener loader

Scrapes intraday screener exports, normalizes them into screener signals,
reconciles repeated sightings per trading day and selects Open-High-Low
breakout candidates against market breadth and live quotes.

Usage:
  go run ./cmd/sgloader [command]

Examples:
  go run ./cmd/sgloader api
  go run ./cmd/sgloader load ohl --file cash.csv --fno-file fno.csv
  go run ./cmd/sgloader candidates
  go run ./cmd/sgloader migrate`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := godotenv.Overload(configFile); err != nil {
				return fmt.Errorf("load %s: %w", configFile, err)
			}
		}
		if cmd.Flags().Changed("env") {
			os.Setenv("ENV", env)
		}
		if verbose {
			os.Setenv("LOG_LEVEL", "debug")
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

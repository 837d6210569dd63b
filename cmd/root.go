package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"licensetable/internal/config"
	"licensetable/internal/logger"
)

var version = "1.0.0"

// cfg is loaded once before any subcommand runs and shared by all of them.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "licensetable",
	Short: "Extract the vehicle category table from driving licence images",
	Long: `licensetable locates the category table on a driving licence image,
reads it with OCR and rebuilds the rows of (category, issued date, expiry date).

Results are written as CSV to the output directory and, when configured,
appended to a Google Sheet and stored in PostgreSQL.

Configuration is read from configs/config.yaml (or --config / CONFIG_PATH)
and overridden by environment variables, including those in a .env file.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML configuration file")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")

	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := logger.Setup(loaded.GetLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg = loaded

	log := logger.WithComponent("cmd")
	log.Debug().
		Str("command", cmd.Name()).
		Str("version", version).
		Msg("Configuration loaded")
	return nil
}

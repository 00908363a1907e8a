// etl extracts text and fields from scanned financial documents.
//
// Usage:
//
//	etl serve [--config=config.yaml]
//	etl run --file=<documents.json>
//	etl scan --type=<POLICY|REGISTRATION|APPRAISAL> [--session=<id>] [--parent=<id>] [--dry-run]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/henrymedina447/sbs-suptech-etl-v2/config"
	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "ETL for scanned policies, registrations and appraisals",
	Long: "etl runs OCR on scanned financial documents, rebuilds their page text,\n" +
		"extracts the fields of each document type and notifies downstream consumers.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(&logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cmd.ErrOrStderr(),
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML configuration")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loaded returns the configuration read by the root command.
func loaded() *config.Config {
	return config.GlobalConfig
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/findmycure/findmycure-italia/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "findmycure",
	Short: "Search and compare Italian medical facilities",
	Long:  "Loads facility datasets from regional open data portals, geocodes addresses via Nominatim, and serves a search and comparison web app.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

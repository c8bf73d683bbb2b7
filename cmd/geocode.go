package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var geocodeCount int

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode facilities that lack coordinates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n := geocodeCount
		if n <= 0 {
			n = cfg.Geocode.BatchSize
		}

		stats, err := env.Loader.GeocodeBatch(ctx, n)
		if err != nil {
			return err
		}

		fmt.Printf("geocoded %d, failed %d\n", stats.Geocoded, stats.Failed)
		return nil
	},
}

func init() {
	geocodeCmd.Flags().IntVar(&geocodeCount, "n", 0, "facilities per batch (default from config)")
	rootCmd.AddCommand(geocodeCmd)
}

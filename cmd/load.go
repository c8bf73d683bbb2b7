package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/findmycure/findmycure-italia/internal/loader"
	"github.com/findmycure/findmycure-italia/internal/model"
)

var (
	loadBatch int
	loadAll   bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load regional facility datasets",
	Long:  "Loads one batch of regional datasets into the store. Without --batch the next incomplete batch runs; --all runs every remaining batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		start := loadBatch
		if start < 0 {
			start, err = env.Loader.NextBatch(ctx)
			if err != nil {
				return err
			}
		}
		if start >= loader.NumBatches {
			fmt.Println("all batches already loaded")
			return nil
		}

		end := start
		if loadAll {
			end = loader.NumBatches - 1
		}

		var total model.LoadStats
		for batch := start; batch <= end; batch++ {
			stats, err := env.Loader.LoadBatch(ctx, batch)
			total.Add(stats)
			if err != nil {
				return err
			}
			zap.L().Info("batch complete", zap.Int("batch", batch))
		}

		fmt.Printf("added %d, updated %d, skipped %d, errors %d\n",
			total.Added, total.Updated, total.Skipped, total.Errors)
		return nil
	},
}

func init() {
	loadCmd.Flags().IntVar(&loadBatch, "batch", -1, "batch index to load (default: next incomplete)")
	loadCmd.Flags().BoolVar(&loadAll, "all", false, "load every remaining batch")
	rootCmd.AddCommand(loadCmd)
}

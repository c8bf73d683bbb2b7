package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var ratingsCmd = &cobra.Command{
	Use:   "ratings",
	Short: "Import, export, and reconcile quality ratings",
}

var ratingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Apply a ratings corrections CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close()

		stats, err := env.Loader.ImportRatingsCSV(ctx, f)
		if err != nil {
			return err
		}
		fmt.Printf("added %d, updated %d, skipped %d\n", stats.Added, stats.Updated, stats.Skipped)
		return nil
	},
}

var ratingsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export all stored ratings as a corrections CSV",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		out := os.Stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return eris.Wrapf(err, "create %s", args[0])
			}
			defer f.Close()
			out = f
		}
		return env.Loader.ExportRatingsCSV(ctx, out)
	},
}

var ratingsCompareCmd = &cobra.Command{
	Use:   "compare <file>",
	Short: "Reconcile a corrections CSV against the store without writing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close()

		diff, err := env.Loader.Compare(ctx, f)
		if err != nil {
			return err
		}
		if diff.Empty() {
			fmt.Println("store matches file")
			return nil
		}

		for _, name := range diff.MissingFacilities {
			fmt.Printf("missing facility: %s\n", name)
		}
		for _, c := range diff.RatingChanges {
			fmt.Printf("changed: %s (%s) %s: stored %.1f, file %.1f\n",
				c.Facility, c.City, c.Specialty, c.Stored, c.Incoming)
		}
		for _, k := range diff.MissingRatings {
			fmt.Printf("missing rating: %s (%s) %s\n", k.Facility, k.City, k.Specialty)
		}
		return nil
	},
}

func init() {
	ratingsCmd.AddCommand(ratingsImportCmd, ratingsExportCmd, ratingsCompareCmd)
	rootCmd.AddCommand(ratingsCmd)
}

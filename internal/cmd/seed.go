package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emberline/marketpulse/internal/seeder"
)

var (
	seedOut      string
	seedDay      string
	seedProducts int
	seedLicenses int
	seedChurn    int
	seedSeed     int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate fake vendor payload fixtures for rehearsal runs",
	Long: `seed writes fake license and feedback records to a fixtures directory.
Point "marketpulse run --fixtures <dir> --dry-run" at it to rehearse the
whole pipeline without marketplace credentials.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedOut, "out", "fixtures", "output directory")
	seedCmd.Flags().StringVar(&seedDay, "day", "", "report day YYYY-MM-DD the fixtures target (default: yesterday)")
	seedCmd.Flags().IntVar(&seedProducts, "products", 3, "number of fake products")
	seedCmd.Flags().IntVar(&seedLicenses, "licenses", 30, "number of fake license records")
	seedCmd.Flags().IntVar(&seedChurn, "churn", 5, "number of fake churn records")
	seedCmd.Flags().Int64Var(&seedSeed, "seed", 0, "random seed for reproducible fixtures (0 = from the clock)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	day := time.Now().UTC().AddDate(0, 0, -1)
	if seedDay != "" {
		var err error
		day, err = time.Parse("2006-01-02", seedDay)
		if err != nil {
			return fmt.Errorf("invalid day %q: %w", seedDay, err)
		}
	}

	licenses, churn := seeder.Generate(seeder.Options{
		Day:      day,
		Products: seedProducts,
		Licenses: seedLicenses,
		Churn:    seedChurn,
		Seed:     seedSeed,
	})

	if err := seeder.WriteDir(seedOut, licenses, churn); err != nil {
		return err
	}

	fmt.Printf("Wrote %d license and %d churn records for %s to %s\n",
		len(licenses), len(churn), day.Format("2006-01-02"), seedOut)
	return nil
}

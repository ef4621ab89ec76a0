package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"dailyprompt/internal/trigger"
)

var (
	previewDay  string
	previewSeed int64
	previewDays int
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the blocks and a sample trigger set for a day",
	Long: `Generate trigger sets from the schedule section of the config without
running the scheduler.

Examples:
  # Today's blocks and one random draw
  promptd preview

  # A reproducible week starting on a given day
  promptd preview --day 2024-03-14 --days 7 --seed 42
`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewDay, "day", "", "day to preview (YYYY-MM-DD, config timezone; default today)")
	previewCmd.Flags().Int64Var(&previewSeed, "seed", 0, "random seed (0 = time based)")
	previewCmd.Flags().IntVar(&previewDays, "days", 1, "number of consecutive days")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tc, err := cfg.Schedule.Trigger()
	if err != nil {
		return err
	}
	loc := tc.Location
	if loc == nil {
		loc = time.Local
	}

	day := time.Now().In(loc)
	if previewDay != "" {
		day, err = time.ParseInLocation("2006-01-02", previewDay, loc)
		if err != nil {
			return fmt.Errorf("--day: %w", err)
		}
	}
	seed := previewSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "timezone %s, block length %s, min spacing %s, seed %d\n",
		loc, tc.BlockLength(), tc.MinSpacing, seed)
	for i := 0; i < max(1, previewDays); i++ {
		d := day.AddDate(0, 0, i)
		set, err := trigger.Generate(d, tc, rng)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n", set.Day.Format("2006-01-02 Mon"))
		for j, b := range trigger.BlockBounds(d, tc) {
			fmt.Fprintf(out, "  block %d  [%s, %s)  %s\n", j,
				b[0].Format("15:04:05"), b[1].Format("15:04:05"),
				trigger.FormatTime(set.Entries[j].At, loc))
		}
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dailyprompt/internal/config"
	"dailyprompt/internal/report"
)

var (
	historyLimit       int
	historyParticipant string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent records from the file or sqlite report sink",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of records to print (0 = all)")
	historyCmd.Flags().StringVarP(&historyParticipant, "participant", "p", "", "only records for this participant")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	recs, err := readHistory(cmd.Context(), cfg.Report, historyParticipant, historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range recs {
		fmt.Fprintf(out, "%s  %-10s  %s\n", r.At.Format("2006-01-02 15:04:05"), r.Participant, r.Message)
	}
	return nil
}

// readHistory prefers the JSON Lines file and falls back to the sqlite database.
func readHistory(ctx context.Context, rc config.ReportConfig, participant string, limit int) ([]report.Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if path := strings.TrimSpace(rc.FilePath); path != "" {
		recs, err := report.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if participant != "" {
			kept := recs[:0]
			for _, r := range recs {
				if r.Participant == participant {
					kept = append(kept, r)
				}
			}
			recs = kept
		}
		if limit > 0 && len(recs) > limit {
			recs = recs[len(recs)-limit:]
		}
		return recs, nil
	}
	if path := strings.TrimSpace(rc.SQLitePath); path != "" {
		return report.ReadSQLite(ctx, path, participant, limit)
	}
	return nil, errors.New("neither report.file_path nor report.sqlite_path is set")
}

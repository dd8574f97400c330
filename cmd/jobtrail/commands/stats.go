package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/jobtrail/display"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/jobs"
	"github.com/teranos/jobtrail/stats"
)

// StatsCmd shows aggregate statistics
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show status counts and funnel statistics",
	Long: `Show how many jobs sit in each status and how many crossed each funnel step.

With --json the output also carries sankey nodes and links for charting.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

// StaleCmd lists applications awaiting follow-up
var StaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List active applications with no recent activity",
	Long: `List jobs that are still active (Saved, Applied, Interviewing or Offer)
and have not been updated for a while, oldest first.

The default age comes from stale.days in am.toml.`,
	Args: cobra.NoArgs,
	RunE: runStale,
}

var staleDays int

func init() {
	StaleCmd.Flags().IntVarP(&staleDays, "days", "d", 0, "Idle days before a job counts as stale (default from stale.days)")
}

func runStats(cmd *cobra.Command, args []string) error {
	_, store, err := loadStore()
	if err != nil {
		return err
	}
	st, err := stats.NewAggregator(store).Compute(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(out, st)
	}
	view, err := display.StatsView(st)
	if err != nil {
		return err
	}
	fmt.Fprint(out, view)
	return nil
}

func runStale(cmd *cobra.Command, args []string) error {
	cfg, store, err := loadStore()
	if err != nil {
		return err
	}

	olderThan := cfg.StaleAfter()
	if cmd.Flags().Changed("days") {
		if staleDays < 0 {
			return errors.NewValidationError("--days must not be negative, got %d", staleDays)
		}
		olderThan = time.Duration(staleDays) * 24 * time.Hour
	}

	records, err := store.Stale(cmd.Context(), olderThan)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		if records == nil {
			records = []jobs.Record{}
		}
		return display.OutputJSON(out, records)
	}
	table, err := display.StaleTable(records, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprint(out, table)
	return nil
}

package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/jobtrail/display"
	"github.com/teranos/jobtrail/jobs"
)

// LsCmd lists tracked jobs
var LsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List tracked jobs",
	Long: `List tracked jobs in the order they were added.

The # column is the position accepted by show, status, note and rm.
Positions stay stable when filtering by status.`,
	Args: cobra.NoArgs,
	RunE: runLs,
}

// ShowCmd shows one job
var ShowCmd = &cobra.Command{
	Use:   "show <id|#>",
	Short: "Show every field of one job",
	Long:  "Show one job by full id, list position, or an unambiguous id prefix of at least 4 characters.",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

// StatusCmd moves a job through the application funnel
var StatusCmd = &cobra.Command{
	Use:   "status <id|#> <status>",
	Short: "Move a job to a new status",
	Long: `Move a job to a new status.

Allowed moves:
  Saved        -> Applied
  Applied      -> Interviewing
  Interviewing -> Offer, Rejected
  Offer        -> Hired, Rejected
  any active   -> Withdrawn

Hired, Rejected and Withdrawn are final.`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

// NoteCmd attaches a note to a job
var NoteCmd = &cobra.Command{
	Use:   "note <id|#> <text>",
	Short: "Attach a timestamped note to a job",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runNote,
}

// RmCmd deletes a job
var RmCmd = &cobra.Command{
	Use:     "rm <id|#>",
	Aliases: []string{"delete"},
	Short:   "Delete a job",
	Args:    cobra.ExactArgs(1),
	RunE:    runRm,
}

var (
	lsStatus   string
	statusNote string
)

func init() {
	LsCmd.Flags().StringVarP(&lsStatus, "status", "s", "", "Only list jobs with this status")
	StatusCmd.Flags().StringVarP(&statusNote, "note", "n", "", "Note to attach with the status change")
}

func runLs(cmd *cobra.Command, args []string) error {
	_, store, err := loadStore()
	if err != nil {
		return err
	}
	all, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	subset := all
	if lsStatus != "" {
		status, err := jobs.ParseStatus(lsStatus)
		if err != nil {
			return err
		}
		subset = make([]jobs.Record, 0, len(all))
		for _, r := range all {
			if r.Status == status {
				subset = append(subset, r)
			}
		}
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(out, subset)
	}

	var table string
	if lsStatus == "" {
		table, err = display.JobsTable(all)
	} else {
		table, err = display.NumberedTable(subset, all)
	}
	if err != nil {
		return err
	}
	fmt.Fprint(out, table)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	_, store, err := loadStore()
	if err != nil {
		return err
	}
	rec, err := store.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(out, rec)
	}
	detail, err := display.JobDetail(rec)
	if err != nil {
		return err
	}
	fmt.Fprint(out, detail)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := jobs.ParseStatus(args[1])
	if err != nil {
		return err
	}
	_, store, err := loadStore()
	if err != nil {
		return err
	}
	rec, err := store.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	from := rec.Status

	rec, err = store.UpdateStatus(cmd.Context(), rec.ID, status, statusNote)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(out, rec)
	}
	fmt.Fprintln(out, pterm.Success.Sprintf("%s %s: %s -> %s", rec.ShortID(), rec.Title, from, rec.Status))
	if rec.Status == jobs.StatusHired {
		fmt.Fprintln(out, "Congratulations!")
	}
	return nil
}

func runNote(cmd *cobra.Command, args []string) error {
	_, store, err := loadStore()
	if err != nil {
		return err
	}
	rec, err := store.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	rec, err = store.AddNote(cmd.Context(), rec.ID, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(out, rec)
	}
	fmt.Fprintln(out, pterm.Success.Sprintf("Note added to %s (%d notes)", rec.ShortID(), len(rec.Notes)))
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	_, store, err := loadStore()
	if err != nil {
		return err
	}
	rec, err := store.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := store.Delete(cmd.Context(), rec.ID); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(out, map[string]string{"deleted": rec.ID})
	}
	fmt.Fprintln(out, pterm.Success.Sprintf("Deleted %s: %s at %s", rec.ShortID(), rec.Title, rec.Company))
	return nil
}

package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/jobtrail/cmd/jobtrail/commands"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/logger"
)

var rootCmd = &cobra.Command{
	Use:   "jobtrail",
	Short: "jobtrail - track job applications from posting to offer",
	Long: `jobtrail - capture job postings and follow them through your application funnel.

A posting URL, PDF or pasted text is read, its fields are extracted by a
local language model, and the result is stored as a job record you can
move through Saved -> Applied -> Interviewing -> Offer -> Hired.

Available commands:
  add    - Capture a posting from a URL, PDF file or text
  ls     - List tracked jobs
  show   - Show every field of one job
  status - Move a job to a new status
  note   - Attach a note to a job
  rm     - Delete a job
  stats  - Show status counts and funnel statistics
  stale  - List active applications with no recent activity
  server - Start the JSON/WebSocket server
  am     - Manage jobtrail configuration ("I am")

Examples:
  jobtrail add https://jobs.example.com/backend-engineer
  jobtrail add offer.pdf
  pbpaste | jobtrail add -
  jobtrail status 3 applied --note "sent via referral"
  jobtrail stats --json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		return initialize(verbosity)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

// initialize loads .env before the logger so JOBTRAIL_LOG_LEVEL may come from
// either. Variables already set in the shell win over .env.
func initialize(verbosity int) error {
	envErr := godotenv.Load()
	if err := logger.Initialize(false, verbosity); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warnw("Ignoring unreadable .env file", logger.FieldError, envErr.Error())
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")

	rootCmd.AddCommand(commands.AddCmd)
	rootCmd.AddCommand(commands.LsCmd)
	rootCmd.AddCommand(commands.ShowCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.NoteCmd)
	rootCmd.AddCommand(commands.RmCmd)
	rootCmd.AddCommand(commands.StatsCmd)
	rootCmd.AddCommand(commands.StaleCmd)
	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.WithWriter(os.Stderr).Println(err)
		for _, hint := range errors.GetAllHints(err) {
			pterm.Info.WithWriter(os.Stderr).Println(hint)
		}
		os.Exit(1)
	}
}

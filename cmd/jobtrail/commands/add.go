package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/jobtrail/capture"
	"github.com/teranos/jobtrail/display"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/extract"
	"github.com/teranos/jobtrail/source"
)

// AddCmd captures a job posting
var AddCmd = &cobra.Command{
	Use:   "add <url|file.pdf|file.txt|text|->",
	Short: "Capture a job posting from a URL, PDF file or text",
	Long: `Read a job posting, extract its fields with the local model and store it.

The input kind is detected automatically: http(s) URLs are fetched, existing
.pdf files are parsed, existing .txt files are read, and anything else is
treated as the posting text itself. Use "-" to read the text from stdin.

Adding a posting that is already tracked updates its fields and keeps its
status and notes.

Examples:
  jobtrail add https://jobs.example.com/backend-engineer
  jobtrail add ~/Downloads/offer.pdf
  jobtrail add --kind text "Senior Go Engineer at Acme, remote, 120k"
  pbpaste | jobtrail add -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var addKind string

func init() {
	AddCmd.Flags().StringVarP(&addKind, "kind", "k", "auto", "Input kind: auto, url, pdf, text")
}

func runAdd(cmd *cobra.Command, args []string) error {
	in, err := captureInput(addKind, args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, store, err := loadStore()
	if err != nil {
		return err
	}
	pipeline := capture.NewFromConfig(cfg, store)

	var spinner *pterm.SpinnerPrinter
	if !display.ShouldOutputJSON(cmd) {
		spinner, _ = pterm.DefaultSpinner.WithWriter(cmd.ErrOrStderr()).Start("Reading posting...")
	}
	res, err := pipeline.Capture(cmd.Context(), in)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(out, res)
	}
	printCaptureResult(out, res)
	return nil
}

// captureInput builds the source input from arguments, reading stdin for "-"
func captureInput(kind string, args []string, stdin io.Reader) (source.Input, error) {
	k, err := source.ParseKind(kind)
	if err != nil {
		return source.Input{}, err
	}

	raw := strings.Join(args, " ")
	if raw == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return source.Input{}, errors.Wrap(err, "failed to read stdin")
		}
		raw = string(data)
		if k == source.KindAuto {
			k = source.KindText
		}
	}

	if k == source.KindAuto {
		return source.Detect(raw), nil
	}
	return source.Input{Kind: k, Value: raw}, nil
}

func printCaptureResult(w io.Writer, res *capture.Result) {
	rec := res.Record
	verb := "Saved"
	if !res.Created {
		verb = "Updated"
	}
	fmt.Fprintln(w, pterm.Success.Sprintf("%s %s: %s at %s", verb, rec.ShortID(), rec.Title, rec.Company))

	switch res.Outcome {
	case extract.OutcomePartial:
		missing := make([]string, len(res.Missing))
		for i, f := range res.Missing {
			missing[i] = string(f)
		}
		fmt.Fprintln(w, pterm.Warning.Sprintf("Model left out: %s", strings.Join(missing, ", ")))
	case extract.OutcomeHeuristic:
		fmt.Fprintln(w, pterm.Warning.Sprint("Model output was unusable; fields were guessed from the text"))
	}
	if !res.Created {
		fmt.Fprintf(w, "Status stays %s\n", display.StatusText(rec.Status))
	}
}

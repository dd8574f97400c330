package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// OutputEnv switches every command to JSON output when set to "json",
// for scripts and the hotkey listener that call the CLI
const OutputEnv = "JOBTRAIL_OUTPUT"

// ShouldOutputJSON determines if a command should output JSON based on flags and environment
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return envWantsJSON()
	}

	// An explicit --json on the command wins
	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}

	// Check global --json flag
	if globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json"); globalFlag {
		return true
	}

	return envWantsJSON()
}

func envWantsJSON() bool {
	return strings.EqualFold(os.Getenv(OutputEnv), "json")
}

// OutputJSON marshals v with MarshalJSON and writes it to w
func OutputJSON(w io.Writer, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

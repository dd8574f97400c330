package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/jobtrail/ai/provider"
	"github.com/teranos/jobtrail/am"
	"github.com/teranos/jobtrail/display"
	"github.com/teranos/jobtrail/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage jobtrail configuration",
	Long: `am - Manage jobtrail configuration ("I am")

Display and manage where jobs are stored and which local model extracts them.

Configuration sources (in order of precedence):
1. Environment variables (JOBTRAIL_* prefix, OLLAMA_HOST)
2. Project config (./am.toml, searched up the directory tree)
3. UI config (~/.jobtrail/am_from_ui.toml, written by 'am set-model')
4. User config (~/.jobtrail/am.toml)
5. System config (/etc/jobtrail/am.toml)
6. Default values

Examples:
  jobtrail am show                     # Show current configuration
  jobtrail am show --format json       # Show configuration in JSON format
  jobtrail am get local_inference.model
  jobtrail am where                    # Show which file set each value
  jobtrail am set-model llama3.2       # Switch the extraction model`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current jobtrail configuration from all sources",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., store.path, local_inference.model)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate that the current jobtrail configuration is valid",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and the source of every effective setting.

Settings are listed per source, lowest precedence first.`,
	RunE: runAmWhere,
}

var amSetModelCmd = &cobra.Command{
	Use:   "set-model <model>",
	Short: "Set the local extraction model",
	Long: `Store local_inference.model in ~/.jobtrail/am_from_ui.toml.

The local model server is asked whether the model is installed; a missing
model is reported but still saved so it can be pulled afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runAmSetModel,
}

var (
	configFormat string
	amBaseURL    string
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json")
	amSetModelCmd.Flags().StringVar(&amBaseURL, "base-url", "", "Also set local_inference.base_url")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
	AmCmd.AddCommand(amSetModelCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	out := cmd.OutOrStdout()
	format := configFormat
	if display.ShouldOutputJSON(cmd) {
		format = "json"
	}

	switch format {
	case "json":
		return display.OutputJSON(out, cfg)

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(out, "# jobtrail configuration\n%s", string(data))

	default:
		return errors.NewValidationError("unsupported format: %s (supported: toml, json)", format)
	}

	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := am.GetViper()
	if !v.IsSet(key) {
		return errors.WithHint(
			errors.NewNotFoundError("configuration key %q", key),
			"run 'jobtrail am where' to list every key")
	}

	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), pterm.Success.Sprint("Configuration is valid"))
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return errors.Wrap(err, "failed to get config introspection")
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(out, intro)
	}
	printConfigCascade(out, intro)
	return nil
}

// printConfigCascade lists settings grouped by source, lowest precedence first
func printConfigCascade(w io.Writer, intro *am.ConfigIntrospection) {
	fmt.Fprintln(w, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(w, "  1. [DEFAULT]  Built-in defaults")
	fmt.Fprintln(w, "  2. [SYSTEM]   /etc/jobtrail/am.toml")
	fmt.Fprintln(w, "  3. [USER]     ~/.jobtrail/am.toml")
	fmt.Fprintln(w, "  4. [USER_UI]  ~/.jobtrail/am_from_ui.toml")
	fmt.Fprintln(w, "  5. [PROJECT]  ./am.toml (searches up directories)")
	fmt.Fprintln(w, "  6. [ENV]      JOBTRAIL_* environment variables")
	fmt.Fprintln(w)

	if len(intro.Files) == 0 {
		fmt.Fprintln(w, "No config files found; using defaults and environment.")
	} else {
		fmt.Fprintln(w, "Config files found:")
		for _, f := range intro.Files {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}

	sourceOrder := []am.ConfigSource{
		am.SourceDefault,
		am.SourceSystem,
		am.SourceUser,
		am.SourceUserUI,
		am.SourceProject,
		am.SourceEnvironment,
	}

	for _, source := range sourceOrder {
		var settings []am.SettingInfo
		for _, s := range intro.Settings {
			if s.Source == source {
				settings = append(settings, s)
			}
		}
		if len(settings) == 0 {
			continue
		}

		switch source {
		case am.SourceDefault:
			fmt.Fprintf(w, "\n%s: %d settings\n", source, len(settings))
		case am.SourceEnvironment:
			fmt.Fprintf(w, "\n%s: %d settings from environment variables\n", source, len(settings))
		default:
			fmt.Fprintf(w, "\n%s: %d settings from %s\n", source, len(settings), settings[0].SourcePath)
		}

		for _, s := range settings {
			valueStr := fmt.Sprintf("%v", s.Value)
			if len(valueStr) > 50 {
				valueStr = valueStr[:47] + "..."
			}
			if source == am.SourceEnvironment {
				fmt.Fprintf(w, "  %s = %s (%s)\n", s.Key, valueStr, s.SourcePath)
				continue
			}
			fmt.Fprintf(w, "  %s = %s\n", s.Key, valueStr)
		}
	}
}

func runAmSetModel(cmd *cobra.Command, args []string) error {
	model := args[0]
	out := cmd.OutOrStdout()

	if amBaseURL != "" {
		if err := am.UpdateLocalInferenceBaseURL(amBaseURL); err != nil {
			return err
		}
	}
	if err := am.UpdateLocalInferenceModel(model); err != nil {
		return err
	}
	fmt.Fprintln(out, pterm.Success.Sprintf("local_inference.model = %s (%s)", model, am.GetUIConfigPath()))

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to reload config")
	}
	checkModelInstalled(cmd.Context(), out, cfg, model)
	return nil
}

// checkModelInstalled warns when the local server is unreachable or lacks model
func checkModelInstalled(ctx context.Context, w io.Writer, cfg *am.Config, model string) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	lp := provider.NewLocalProvider(&cfg.LocalInference)
	models, err := lp.ListModels(ctx)
	if err != nil {
		fmt.Fprintln(w, pterm.Warning.Sprintf("Could not list models at %s: %v", cfg.LocalInference.BaseURL, err))
		return
	}
	if !provider.HasModel(models, model) {
		fmt.Fprintln(w, pterm.Warning.Sprintf("%s is not installed; run: ollama pull %s", model, model))
	}
}

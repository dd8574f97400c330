package commands

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/teranos/jobtrail/logger"
	"github.com/teranos/jobtrail/version"
)

// printStartupBanner prints the server startup message
func printStartupBanner(verbosity int, storePath, model string) {
	versionInfo := version.Get()

	title := pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("jobtrail")
	pterm.DefaultBox.WithTitle(title).Println(
		fmt.Sprintf("Version:   %s (commit %s)\n", versionInfo.Version, versionInfo.Short()) +
			fmt.Sprintf("Built:     %s\n", versionInfo.BuildTime) +
			fmt.Sprintf("Verbosity: %s\n", logger.LevelName(verbosity)) +
			fmt.Sprintf("Store:     %s\n", storePath) +
			fmt.Sprintf("Model:     %s", model))

	pterm.Info.Println("Press Ctrl+C to stop")
}

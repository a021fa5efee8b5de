// Package cmd provides list of commands
package cmd

import (
	"github.com/relex/gotils/config"
)

func init() {
	config.AddParentCmdWithArgs("", "slog-analyzer searches log files by regular expressions, in parallel and continuously", &rootCmd, rootCmd.preRun, rootCmd.postRun)
	config.AddCmdWithArgs("search ...", "Search log file and print matched records", &searchCmd, searchCmd.run)
}

// Execute parses the command line and runs the specified command
func Execute() {
	// trigger init

	config.Execute()
}

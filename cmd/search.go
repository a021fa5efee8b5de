package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/relex/gotils/logger"
	"github.com/relex/slog-analyzer/defs"
	"github.com/relex/slog-analyzer/report"
	"github.com/relex/slog-analyzer/run"
	"github.com/relex/slog-analyzer/util"
)

type searchCommandState struct {
	Config      string `help:"Configuration file path"`
	Pattern     string `help:"Regular expression to search, with optional UML (UCL, US, UM, URT, ...) and plot (PXData_*, PYData_*) group names"`
	From        int    `help:"First record index"`
	Count       int    `help:"Numbers of records to search, 0 for all"`
	Threads     int    `help:"Numbers of worker threads, 0 for the maximum"`
	Fields      string `help:"Comma-separated glob patterns of fields to search in, empty for the configured ones"`
	Continuous  bool   `help:"Keep searching appended records until interrupted"`
	Output      string `help:"Output format: text or json"`
	MetricsAddr string `help:"The listener address to expose Prometheus metrics and debug information, empty to disable"`
	TestMode    bool   `help:"Use test mode config: fast retry and short timeout"`
}

var searchCmd = searchCommandState{
	Config:      "config.yml",
	Pattern:     "",
	From:        0,
	Count:       0,
	Threads:     0,
	Fields:      "",
	Continuous:  false,
	Output:      string(report.FormatText),
	MetricsAddr: "",
	TestMode:    false,
}

func (cmd *searchCommandState) run(args []string) {
	if cmd.TestMode {
		defs.EnableTestMode()
	}
	if cmd.Pattern == "" {
		logger.Fatal("--pattern is required")
	}

	if cmd.MetricsAddr != "" {
		msrv := util.LaunchMetricsListener(cmd.MetricsAddr)
		defer func() {
			if err := msrv.Shutdown(context.Background()); err != nil {
				logger.Errorf("error shutting down metrics listener: %v", err)
			}
		}()
	}

	req := run.SearchRequest{
		Pattern:    cmd.Pattern,
		From:       cmd.From,
		Count:      cmd.Count,
		Threads:    cmd.Threads,
		Continuous: cmd.Continuous,
		Fields:     util.SplitNonEmpty(cmd.Fields, ","),
	}
	if err := run.Run(cmd.Config, req, report.Format(strings.ToLower(cmd.Output)), os.Stdout); err != nil {
		logger.Fatal(err)
	}
}

// Package run loads the analyzer configuration, launches the analysis stack and runs searches
package run

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-analyzer/base"
	"github.com/relex/slog-analyzer/defs"
	"github.com/relex/slog-analyzer/report"
	"github.com/relex/slog-analyzer/util"
)

// Run runs one search over the source in config file and writes results to out, until the search finishes or is
// stopped by signals
func Run(configFile string, req SearchRequest, format report.Format, out io.Writer) error {
	loader, err := NewLoaderFromConfigFile(configFile, "sloganalyzer_")
	if err != nil {
		return err
	}
	analysis, err := loader.Launch(logger.Root(), req.Continuous)
	if err != nil {
		return err
	}
	defer analysis.Shutdown()

	writer, err := report.NewWriter(format, out, analysis.Cache, loader.Schema)
	if err != nil {
		return err
	}

	runLogger := logger.WithField(defs.LabelComponent, "Launcher")
	stop := channels.NewSignalAwaitable()
	signalStop := util.NewRunOnce(stop.Signal)
	sigChan := make(chan os.Signal, 10)
	signal.Notify(sigChan, syscall.SIGINT)
	signal.Notify(sigChan, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case s := <-sigChan:
			runLogger.Infof("received %s, shutting down", s)
			signalStop()
		case <-stop.Channel():
		}
	}()
	defer signalStop()

	err = analysis.Search(req, stop, func(n base.ProgressNotification) {
		if werr := writer.Write(n); werr != nil {
			runLogger.Error("failed to write results: ", werr)
			signalStop()
		}
	})
	runLogger.Infof("found %d matches", writer.TotalMatches())
	return err
}

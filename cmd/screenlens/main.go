package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/screenlens/screenlens/internal/config"
	"github.com/screenlens/screenlens/internal/pipeline"
	"github.com/screenlens/screenlens/pkg/runerr"
)

var (
	okTag   = color.New(color.FgGreen).SprintFunc()
	warnTag = color.New(color.FgYellow).SprintFunc()
	errTag  = color.New(color.FgRed).SprintFunc()
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errTag("[ERROR]"), err)
		return runerr.ExitFatal
	}

	app := &app{cfg: cfg, exitCode: runerr.ExitOK}

	root := &cobra.Command{
		Use:           "screenlens",
		Short:         "Static analysis for legacy visual-client source trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		app.extractCmd(),
		app.analyzeCmd(),
		app.reportCmd(),
		app.diffCmd(),
		app.dashboardCmd(),
		app.runCmd(),
		app.watchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errTag("[ERROR]"), err)
		if app.exitCode == runerr.ExitOK {
			return runerr.ExitFatal
		}
	}
	return app.exitCode
}

type app struct {
	cfg      *config.Config
	verbose  bool
	exitCode int
}

func (a *app) logger() *slog.Logger {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// printOutcome renders the user-visible summary: [OK] with counts on
// success or partial, one [WARN] line per failure.
func printOutcome(out *pipeline.Outcome) {
	fmt.Printf("%s run %s: %s (objects=%d events=%d functions=%d relations=%d sql=%d dw=%d, %s)\n",
		okTag("[OK]"), out.RunID, out.Status,
		out.Objects, out.Events, out.Functions, out.Relations, out.Sql, out.DataWindows,
		out.Elapsed.Round(time.Millisecond))
	for _, f := range out.Failures {
		if f.Path != "" {
			fmt.Printf("%s %s: %s (%s)\n", warnTag("[WARN]"), f.Stage, f.Reason, f.Path)
		} else {
			fmt.Printf("%s %s: %s\n", warnTag("[WARN]"), f.Stage, f.Reason)
		}
	}
}

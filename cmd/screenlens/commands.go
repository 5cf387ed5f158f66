package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/screenlens/screenlens/internal/extractor"
	"github.com/screenlens/screenlens/internal/pipeline"
	"github.com/screenlens/screenlens/internal/report"
	"github.com/screenlens/screenlens/internal/rules"
	"github.com/screenlens/screenlens/internal/store"
	"github.com/screenlens/screenlens/pkg/runerr"
)

func (a *app) extractCmd() *cobra.Command {
	var input, out, selector, command string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract source objects into a manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			ext, err := extractor.Select(selector, command)
			if err != nil {
				return a.fatal(err)
			}
			manifest, err := ext.Extract(ctx, input, out, extractor.Options{Command: command})
			if err != nil {
				return a.fatal(err)
			}

			manifestPath := filepath.Join(out, "manifest.json")
			if err := extractor.WriteManifest(manifestPath, manifest); err != nil {
				return a.fatal(err)
			}

			fmt.Printf("%s extracted %d objects to %s\n", okTag("[OK]"), len(manifest.Objects), manifestPath)
			for _, f := range manifest.Failures {
				fmt.Printf("%s extract: %s (%s)\n", warnTag("[WARN]"), f.Reason, f.Path)
			}
			if len(manifest.Failures) > 0 {
				a.exitCode = runerr.ExitPartial
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "source tree, archive, or binary library")
	cmd.Flags().StringVar(&out, "out", "out", "output directory")
	cmd.Flags().StringVar(&selector, "extractor", a.cfg.Analyzer.Extractor, "extractor selector (auto|text|binary)")
	cmd.Flags().StringVar(&command, "extract-cmd", a.cfg.Analyzer.ExtractorCommand, "export command template with {input} and {output}")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) analyzeCmd() *cobra.Command {
	var manifest, db, runID, sourceVersion, rulesPath string
	var workers int

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Parse and analyze an extracted manifest into the IR store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return a.runPipeline(ctx, extractor.NewPrebuilt(manifest), pipeline.Options{
				RunID:         runID,
				SourceVersion: sourceVersion,
			}, db, rulesPath, workers)
		},
	}

	cmd.Flags().StringVar(&manifest, "manifest", "", "manifest.json from the extract stage")
	cmd.Flags().StringVar(&db, "db", a.cfg.Store.Path, "IR store path")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id override")
	cmd.Flags().StringVar(&sourceVersion, "source-version", "", "source version label")
	cmd.Flags().StringVar(&rulesPath, "rules", a.cfg.Analyzer.RulesPath, "rules YAML path")
	cmd.Flags().IntVar(&workers, "workers", a.cfg.Analyzer.Workers, "parser worker count")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	var input, out, db, selector, command, format, runID, sourceVersion, rulesPath string
	var workers int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, analyze, and report in one pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			ext, err := extractor.Select(selector, command)
			if err != nil {
				return a.fatal(err)
			}

			opts := pipeline.Options{
				InputPath:        input,
				OutDir:           filepath.Join(out, "extract"),
				RunID:            runID,
				SourceVersion:    sourceVersion,
				ExtractorCommand: command,
			}
			if err := a.runPipeline(ctx, ext, opts, db, rulesPath, workers); err != nil {
				return err
			}

			s, err := store.Open(db)
			if err != nil {
				return a.fatal(err)
			}
			defer s.Close()

			latest, err := latestRunID(ctx, s)
			if err != nil {
				return a.fatal(err)
			}
			files, err := report.Generate(ctx, s, latest, filepath.Join(out, "reports"), format)
			if err != nil {
				return a.fatal(err)
			}
			for _, f := range files {
				fmt.Printf("%s report %s\n", okTag("[OK]"), f)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "source tree, archive, or binary library")
	cmd.Flags().StringVar(&out, "out", "out", "output directory")
	cmd.Flags().StringVar(&db, "db", a.cfg.Store.Path, "IR store path")
	cmd.Flags().StringVar(&selector, "extractor", a.cfg.Analyzer.Extractor, "extractor selector (auto|text|binary)")
	cmd.Flags().StringVar(&command, "extract-cmd", a.cfg.Analyzer.ExtractorCommand, "export command template with {input} and {output}")
	cmd.Flags().StringVar(&format, "format", "html", "report format (csv|json|html)")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id override")
	cmd.Flags().StringVar(&sourceVersion, "source-version", "", "source version label")
	cmd.Flags().StringVar(&rulesPath, "rules", a.cfg.Analyzer.RulesPath, "rules YAML path")
	cmd.Flags().IntVar(&workers, "workers", a.cfg.Analyzer.Workers, "parser worker count")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// runPipeline opens the store, builds the orchestrator, and prints the
// outcome; a.exitCode follows the 0/2/1 contract.
func (a *app) runPipeline(ctx context.Context, ext extractor.Extractor, opts pipeline.Options, db, rulesPath string, workers int) error {
	logger := a.logger()

	s, err := store.Open(db)
	if err != nil {
		return a.fatal(err)
	}
	defer s.Close()

	ruleCfg := rules.Default()
	if rulesPath != "" {
		ruleCfg = rules.Load(rulesPath, logger)
	}

	orch := pipeline.New(s, ruleCfg, workers, logger)
	outcome, err := orch.Run(ctx, ext, opts)
	if err != nil {
		a.exitCode = outcome.ExitCode
		return fmt.Errorf("%s stage failed: %w", failingStage(err), err)
	}

	printOutcome(outcome)
	a.exitCode = outcome.ExitCode
	return nil
}

func (a *app) fatal(err error) error {
	a.exitCode = runerr.ExitFatal
	return err
}

// failingStage names the stage of a fatal error for the [ERROR] line.
func failingStage(err error) string {
	var rerr *runerr.Error
	if errors.As(err, &rerr) {
		switch rerr.Code() {
		case runerr.CodeInput:
			return "input"
		case runerr.CodeExtraction:
			return "extract"
		case runerr.CodeParse:
			return "parse"
		case runerr.CodePersistence:
			return "persist"
		case runerr.CodeCanceled:
			return "cancel"
		}
	}
	return "internal"
}

func latestRunID(ctx context.Context, s *store.Store) (string, error) {
	runs, err := s.Runs(ctx, store.DefaultLimit)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", runerr.New(runerr.CodeInput, "store has no runs")
	}
	return runs[0].RunID, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

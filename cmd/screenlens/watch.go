package main

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/screenlens/screenlens/internal/extractor"
	"github.com/screenlens/screenlens/internal/pipeline"
)

// watchCmd re-runs the analysis whenever a source file under the input
// tree changes, with a short debounce so bulk saves trigger one run.
func (a *app) watchCmd() *cobra.Command {
	var input, out, db, rulesPath string
	var workers int
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run analysis when the source tree changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return a.fatal(err)
			}
			defer watcher.Close()

			if err := watchTree(watcher, input); err != nil {
				return a.fatal(err)
			}

			runOnce := func() {
				opts := pipeline.Options{
					InputPath: input,
					OutDir:    filepath.Join(out, "extract"),
				}
				if err := a.runPipeline(ctx, extractor.NewScan(), opts, db, rulesPath, workers); err != nil {
					fmt.Printf("%s %v\n", errTag("[ERROR]"), err)
				}
			}

			fmt.Printf("%s watching %s\n", okTag("[OK]"), input)
			runOnce()

			var timer *time.Timer
			fire := make(chan struct{}, 1)

			for {
				select {
				case <-ctx.Done():
					return nil

				case ev, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !relevantEvent(ev) {
						continue
					}
					if ev.Op.Has(fsnotify.Create) {
						// new directories need their own watch
						_ = watchTree(watcher, ev.Name)
					}
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(debounce, func() {
						select {
						case fire <- struct{}{}:
						default:
						}
					})

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Printf("%s watch: %v\n", warnTag("[WARN]"), err)

				case <-fire:
					runOnce()
				}
			}
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "source tree to watch")
	cmd.Flags().StringVar(&out, "out", "out", "output directory")
	cmd.Flags().StringVar(&db, "db", a.cfg.Store.Path, "IR store path")
	cmd.Flags().StringVar(&rulesPath, "rules", a.cfg.Analyzer.RulesPath, "rules YAML path")
	cmd.Flags().IntVar(&workers, "workers", a.cfg.Analyzer.Workers, "parser worker count")
	cmd.Flags().DurationVar(&debounce, "debounce", 800*time.Millisecond, "quiet period before re-running")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}

func relevantEvent(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	ext := filepath.Ext(ev.Name)
	switch ext {
	case ".srw", ".sru", ".srm", ".srd", ".srf", ".srs":
		return true
	}
	// directory events have no extension; accept them for re-watch
	return ext == ""
}

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

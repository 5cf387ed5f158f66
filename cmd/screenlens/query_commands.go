package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/screenlens/screenlens/internal/dashboard"
	"github.com/screenlens/screenlens/internal/report"
	"github.com/screenlens/screenlens/internal/store"
)

func (a *app) reportCmd() *cobra.Command {
	var db, runID, out, format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render reports for a run from the IR store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			s, err := store.Open(db)
			if err != nil {
				return a.fatal(err)
			}
			defer s.Close()

			if runID == "" {
				runID, err = latestRunID(ctx, s)
				if err != nil {
					return a.fatal(err)
				}
			}

			files, err := report.Generate(ctx, s, runID, out, format)
			if err != nil {
				return a.fatal(err)
			}
			for _, f := range files {
				fmt.Printf("%s report %s\n", okTag("[OK]"), f)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", a.cfg.Store.Path, "IR store path")
	cmd.Flags().StringVar(&runID, "run-id", "", "run to report on (default: latest)")
	cmd.Flags().StringVar(&out, "out", "reports", "report output directory")
	cmd.Flags().StringVar(&format, "format", "html", "report format (csv|json|html)")
	return cmd
}

func (a *app) diffCmd() *cobra.Command {
	var db string

	cmd := &cobra.Command{
		Use:   "diff <run-old> <run-new>",
		Short: "Compare two runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			s, err := store.Open(db)
			if err != nil {
				return a.fatal(err)
			}
			defer s.Close()

			result, err := s.Diff(ctx, args[0], args[1])
			if err != nil {
				return a.fatal(err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return a.fatal(err)
			}
			fmt.Fprintf(os.Stderr, "%s diff %s -> %s: %d added, %d removed\n",
				okTag("[OK]"), result.RunOld, result.RunNew, len(result.Added), len(result.Removed))
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", a.cfg.Store.Path, "IR store path")
	return cmd
}

func (a *app) dashboardCmd() *cobra.Command {
	var db, addr string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the read-only IR query API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			logger := a.logger()

			s, err := store.Open(db)
			if err != nil {
				return a.fatal(err)
			}
			defer s.Close()

			srv, err := dashboard.NewServer(s, a.cfg.Dashboard.CacheSize, logger)
			if err != nil {
				return a.fatal(err)
			}

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := contextWithTimeout(5 * time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()

			fmt.Printf("%s dashboard listening on http://%s\n", okTag("[OK]"), addr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return a.fatal(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", a.cfg.Store.Path, "IR store path")
	cmd.Flags().StringVar(&addr, "addr", a.cfg.Dashboard.Addr, "listen address")
	return cmd
}

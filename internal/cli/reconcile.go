package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/evanofslack/cddns/internal/reconcile"
	"github.com/evanofslack/cddns/internal/state"
	"github.com/evanofslack/cddns/internal/watch"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// controller wires the engine and controller for one invocation. The
// returned close func releases the state store.
func (a *app) controller(confirmer reconcile.Confirmer) (*reconcile.Controller, func(), error) {
	sm, err := state.New(a.cfg.StatePath, a.metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize state manager: %w", err)
	}
	closeState := func() {
		if err := sm.Close(); err != nil {
			slog.Error("Failed to close state manager", "error", err)
		}
	}

	dp := a.newProvider(a.metrics)
	resolver := a.newResolver(a.cfg.PublicIP, a.metrics)
	engine := reconcile.NewEngine(a.cfg, dp, resolver, a.metrics)
	return reconcile.NewController(a.cfg, engine, dp, confirmer, sm, a.metrics), closeState, nil
}

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Classify tracked records as matching, mismatched or invalid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dp := a.newProvider(a.metrics)
			engine := reconcile.NewEngine(a.cfg, dp, a.newResolver(a.cfg.PublicIP, a.metrics), a.metrics)
			result, err := engine.Check(cmd.Context())
			if err != nil {
				return err
			}
			a.printResult(result)
			return nil
		},
	}
}

func newUpdateCommand(a *app) *cobra.Command {
	return a.runCommand("update", "Point mismatched records at the public address", reconcile.Ops{Update: true})
}

func newPruneCommand(a *app) *cobra.Command {
	return a.runCommand("prune", "Remove invalid records from the inventory", reconcile.Ops{Prune: true})
}

func newCommitCommand(a *app) *cobra.Command {
	return a.runCommand("commit", "Update mismatched records, then prune invalid ones", reconcile.Ops{Update: true, Prune: true})
}

func (a *app) runCommand(use, short string, ops reconcile.Ops) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner := a.scanner()
			defer scanner.Close()

			ctrl, closeState, err := a.controller(scanner)
			if err != nil {
				return err
			}
			defer closeState()

			summary, err := ctrl.Run(cmd.Context(), ops)
			if err != nil {
				return err
			}
			a.printSummary(summary, ops)
			return nil
		},
	}
}

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Commit repeatedly without prompting",
		Long: `Run commit on a fixed interval until interrupted. Prompts are skipped.

An interval of 0 runs cycles back to back, which keeps the API and a CPU core busy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.cfg.Force = true

			ctrl, closeState, err := a.controller(nil)
			if err != nil {
				return err
			}
			defer closeState()

			var server *http.Server
			if a.cfg.MetricsAddress != "" {
				server = a.metricsServer()
			}

			cycle := func(ctx context.Context) error {
				_, err := ctrl.Commit(ctx)
				return err
			}
			err = watch.New(a.cfg.WatchInterval, cycle).Run(ctx)
			slog.Info("Shutdown signal received")

			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Metrics server shutdown error", "error", err)
				}
			}
			slog.Info("Watch stopped")

			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func (a *app) metricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              a.cfg.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}
	go func() {
		slog.Info("Starting metrics server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return server
}

func (a *app) printResult(result reconcile.Result) {
	fmt.Fprintf(a.out, "Matched: %d\n", len(result.Matches))
	fmt.Fprintf(a.out, "Mismatched: %d\n", len(result.Mismatches))
	for _, r := range result.Mismatches {
		want, _ := result.AddressFor(r.Type)
		fmt.Fprintf(a.out, "  %s %s %s, expected %s\n", r.Name, r.Type, r.Content, want)
	}
	fmt.Fprintf(a.out, "Invalid: %d\n", len(result.Invalid))
	for _, p := range result.Invalid {
		fmt.Fprintf(a.out, "  %s %s\n", p.Zone, p.Record)
	}
}

func (a *app) printSummary(s reconcile.Summary, ops reconcile.Ops) {
	fmt.Fprintf(a.out, "Matched: %d\n", s.Matched)
	if ops.Update {
		fmt.Fprintf(a.out, "Updated: %d\n", s.Updated)
		fmt.Fprintf(a.out, "Mismatched: %d\n", s.Mismatched)
		for _, f := range s.Failures {
			fmt.Fprintf(a.out, "  %s %s failed: %s\n", f.Op, f.Record.Name, f.Error)
		}
	}
	if ops.Prune {
		fmt.Fprintf(a.out, "Pruned: %d\n", s.Pruned)
		fmt.Fprintf(a.out, "Invalid: %d\n", s.Invalid)
	}
}

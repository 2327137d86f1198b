package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/streakline/pkg/api"
	"github.com/cuemby/streakline/pkg/events"
	"github.com/cuemby/streakline/pkg/log"
	"github.com/cuemby/streakline/pkg/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the standings reconciler",
	Long: `Run the HTTP API and the standings reconciler against the local store.

Standings are recomputed every reconcile interval and right after every
recorded completion or committed enrollment.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "API listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.API.Addr = addr
	}
	metrics.SetVersion(Version)

	eng, err := openEngine()
	if err != nil {
		metrics.RegisterComponent("storage", false, err.Error())
		return err
	}
	defer eng.Close()
	metrics.RegisterComponent("storage", true, cfg.DataDir)

	collector := metrics.NewCollector(eng.store, 15*time.Second)
	collector.Start()

	eng.reconciler.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go refreshOnEvents(ctx, eng)

	server := api.NewServer(api.Deps{
		Gateway:     eng.gateway,
		Coordinator: eng.coordinator,
		Recorder:    eng.recorder,
		Progress:    eng.progress,
		Sessions:    eng.sessions,
		Assigner:    eng.assigner,
	}, api.Config{
		Addr:      cfg.API.Addr,
		RateLimit: cfg.API.RateLimit,
		RateBurst: cfg.API.RateBurst,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("API server error: %v", err)
		}
	}()

	fmt.Printf("Streakline %s serving on %s (data: %s)\n", Version, cfg.API.Addr, cfg.DataDir)
	fmt.Println("Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case runErr = <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Logger.Warn().Err(err).Msg("API shutdown did not complete cleanly")
	}
	cancel()
	eng.reconciler.Stop()
	collector.Stop()

	fmt.Println("✓ Shutdown complete")
	return runErr
}

// refreshOnEvents recomputes standings as soon as something changes them,
// instead of waiting for the next reconcile tick
func refreshOnEvents(ctx context.Context, eng *engine) {
	logger := log.WithComponent("events")
	sub := eng.broker.Subscribe()
	defer eng.broker.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			logger.Debug().
				Str("event", string(ev.Type)).
				Interface("metadata", ev.Metadata).
				Msg(ev.Message)

			switch ev.Type {
			case events.EventCompletionRecorded, events.EventEnrollmentCommitted, events.EventEnrollmentPartial:
				if _, err := eng.reconciler.ReconcileOnce(ctx); err != nil && ctx.Err() == nil {
					logger.Warn().Err(err).Msg("Event-driven reconcile failed")
				}
			}
		}
	}
}

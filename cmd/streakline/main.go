package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/streakline/pkg/completion"
	"github.com/cuemby/streakline/pkg/config"
	"github.com/cuemby/streakline/pkg/enrollment"
	"github.com/cuemby/streakline/pkg/events"
	"github.com/cuemby/streakline/pkg/gateway"
	"github.com/cuemby/streakline/pkg/log"
	"github.com/cuemby/streakline/pkg/progress"
	"github.com/cuemby/streakline/pkg/reconciler"
	"github.com/cuemby/streakline/pkg/schedule"
	"github.com/cuemby/streakline/pkg/storage"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded once in PersistentPreRunE
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "streakline",
	Short: "Streakline - challenge enrollment and progress tracking",
	Long: `Streakline enrolls users into group challenges, records their daily
completions and keeps streaks and leaderboards up to date.

Every write to the store is read back before the next step runs, so an
enrollment either commits fully or stops with a typed failure.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Streakline version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().String("server", "", "Run against a streakline server (host:port) instead of the local store")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		loaded.DataDir = dataDir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		loaded.Log.Level = level
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	log.Init(loaded.LogConfig())
	cfg = loaded
	return nil
}

// engine is every component wired over one store
type engine struct {
	store       *storage.BoltStore
	gateway     gateway.Gateway
	broker      *events.Broker
	coordinator *enrollment.Coordinator
	recorder    *completion.Recorder
	progress    *progress.Service
	reconciler  *reconciler.Reconciler
	sessions    *enrollment.Sessions
	assigner    *schedule.Assigner
}

func openEngine() (*engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	assigner, err := schedule.NewAssigner(cfg.Enrollment.DefaultTime)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %v", err)
	}

	var gw gateway.Gateway = gateway.NewStoreGateway(store, gateway.WithLocation(loc))
	if cfg.Enrollment.VisibilityDelay > 0 {
		gw = gateway.NewLagged(gw, cfg.Enrollment.VisibilityDelay)
	}

	broker := events.NewBroker()
	broker.Start()

	return &engine{
		store:   store,
		gateway: gw,
		broker:  broker,
		coordinator: enrollment.NewCoordinator(gw,
			enrollment.WithPoller(enrollment.Poller{
				Attempts: cfg.Enrollment.PollAttempts,
				Interval: cfg.Enrollment.PollInterval,
			}),
			enrollment.WithPublisher(broker),
			enrollment.WithActionRate(rate.Limit(cfg.Enrollment.ActionRate), cfg.Enrollment.ActionBurst),
		),
		recorder: completion.NewRecorder(gw,
			completion.WithPublisher(broker),
			completion.WithClock(time.Now, loc),
		),
		progress: progress.NewService(gw),
		reconciler: reconciler.NewReconciler(store,
			reconciler.WithInterval(cfg.Reconcile.Interval),
			reconciler.WithPublisher(broker),
			reconciler.WithClock(time.Now, loc),
		),
		sessions: enrollment.NewSessions(),
		assigner: assigner,
	}, nil
}

func (e *engine) Close() error {
	e.broker.Stop()
	return e.store.Close()
}

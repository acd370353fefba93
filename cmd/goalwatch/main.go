// Command goalwatch polls a football data API for the configured teams,
// detects match events (kickoff, goals, half-time, full-time), and
// dispatches them to notification channels.
//
// Usage:
//
//	goalwatch run
//	goalwatch discover --days 5
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/goalwatch/goalwatch/internal/api"
	"github.com/goalwatch/goalwatch/internal/apiclient"
	"github.com/goalwatch/goalwatch/internal/config"
	"github.com/goalwatch/goalwatch/internal/detector"
	"github.com/goalwatch/goalwatch/internal/notify"
	"github.com/goalwatch/goalwatch/internal/poller"
	"github.com/goalwatch/goalwatch/internal/retry"
	"github.com/goalwatch/goalwatch/internal/scheduler"
	"github.com/goalwatch/goalwatch/internal/store"
	"github.com/goalwatch/goalwatch/internal/tracker"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "goalwatch",
		Short: "Football match event notification service",
	}

	root.AddCommand(runCmd())
	root.AddCommand(discoverCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the polling loop and status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			app, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.poller.Start(ctx); err != nil {
				return fmt.Errorf("start poller: %w", err)
			}
			defer app.poller.Stop()

			router := api.NewRouter(app.tracker, app.poller, app.cfg, logger)
			addr := fmt.Sprintf("%s:%d", app.cfg.APIHost, app.cfg.APIPort)
			srv := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				logger.Info("Starting status API",
					"addr", addr, "environment", app.cfg.Environment)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Status API failed", "error", err)
					cancel()
				}
			}()

			<-ctx.Done()
			logger.Info("Shutting down...")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Shutdown error", "error", err)
			}
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// discover command
// --------------------------------------------------------------------------

func discoverCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run one discovery pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			app, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			discovered, err := app.tracker.Discover(ctx, days)
			if err != nil {
				return err
			}
			logger.Info("Discovery complete", "new_matches", len(discovered))
			for _, m := range discovered {
				logger.Info("Match", "title", m.Title(), "start", m.StartTime, "status", m.Status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "look-ahead window in days (default from config)")
	return cmd
}

// --------------------------------------------------------------------------
// Composition root
// --------------------------------------------------------------------------

type app struct {
	cfg     *config.Config
	tracker *tracker.Tracker
	poller  *poller.Poller
	close   func()
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	teamEntries, err := config.LoadTeams(cfg.TeamsFile)
	if err != nil {
		return nil, err
	}
	teams := make([]tracker.Team, 0, len(teamEntries))
	for _, t := range teamEntries {
		teams = append(teams, tracker.Team{ID: t.ID, Name: t.Name})
	}
	logger.Info("Tracking teams", "count", len(teams))

	client := apiclient.NewClient(cfg.APIBaseURL, cfg.APIKey,
		cfg.APIRequestTimeout, cfg.APIRequestsPerMinute, logger)
	parser := apiclient.NewParser(logger)

	policy := retry.Policy{
		MaxRetries:    cfg.RetryMaxRetries,
		InitialDelay:  cfg.RetryInitialDelay,
		MaxDelay:      cfg.RetryMaxDelay,
		BackoffFactor: cfg.RetryBackoffFactor,
		Jitter:        cfg.RetryJitter,
	}
	breakers := retry.NewRegistry(cfg.BreakerThreshold, cfg.BreakerRecoveryDelay)

	var matchStore tracker.Store
	closeStore := func() {}
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPGStore(ctx, store.PGConfig{DatabaseURL: cfg.DatabaseURL}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres store: %w", err)
		}
		matchStore = pg
		closeStore = pg.Close
		logger.Info("Using Postgres match store")
	} else {
		fs, err := store.NewFileStore(cfg.StorageDir, logger)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		matchStore = fs
		logger.Info("Using file match store", "dir", cfg.StorageDir)
	}

	trk := tracker.New(client, parser, matchStore, teams, policy, breakers, logger)

	enrichment := poller.NewEnrichmentSource(client, parser, policy, breakers, logger)
	det := detector.New(logger, detector.WithEventSource(enrichment))

	telegram, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		return nil, err
	}
	notifiers := []notify.Notifier{notify.NewLogSink(logger)}
	if telegram != nil {
		notifiers = append(notifiers, telegram)
	} else {
		logger.Info("Telegram notifier disabled (no TELEGRAM_BOT_TOKEN)")
	}
	dispatcher := notify.NewDispatcher(logger, notifiers...)

	sched := scheduler.New(cfg.CheckInterval, logger)
	pol := poller.New(trk, det, dispatcher, sched, poller.Config{
		LivePollInterval:    cfg.LivePollInterval,
		DiscoveryInterval:   cfg.DiscoveryInterval,
		DiscoveryWindowDays: cfg.DiscoveryWindowDays,
		PollLead:            cfg.PollLead,
		PruneInterval:       cfg.PruneInterval,
		RetentionDays:       cfg.RetentionDays,
	}, logger)

	return &app{cfg: cfg, tracker: trk, poller: pol, close: closeStore}, nil
}

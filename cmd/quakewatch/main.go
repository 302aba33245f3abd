package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/quakewatch/quakewatch/config"
	"github.com/quakewatch/quakewatch/internal/alert"
	"github.com/quakewatch/quakewatch/internal/api"
	"github.com/quakewatch/quakewatch/internal/backfill"
	"github.com/quakewatch/quakewatch/internal/database"
	"github.com/quakewatch/quakewatch/internal/enrich"
	qerrors "github.com/quakewatch/quakewatch/internal/errors"
	"github.com/quakewatch/quakewatch/internal/feed"
	"github.com/quakewatch/quakewatch/internal/geocode"
	"github.com/quakewatch/quakewatch/internal/ingest"
	"github.com/quakewatch/quakewatch/internal/logger"
	"github.com/quakewatch/quakewatch/internal/metrics"
	"github.com/quakewatch/quakewatch/internal/publish"
	"github.com/quakewatch/quakewatch/internal/ratelimit"
	"github.com/quakewatch/quakewatch/internal/report"
	"github.com/quakewatch/quakewatch/internal/store"
	"github.com/quakewatch/quakewatch/internal/textgen"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Missing .env is fine; production uses real environment variables.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:    "quakewatch",
		Usage:   "earthquake feed ingestion, enrichment, and alert publishing",
		Version: Version,
		Commands: []*cli.Command{
			liveCmd(),
			dailyCmd(),
			weeklyCmd(),
			monthlyCmd(),
			factCmd(),
			backfillCmd(),
			initdbCmd(),
			serveCmd(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "quakewatch: %v\n", err)
		os.Exit(1)
	}
}

// runtime carries the wired pipeline components for one command run.
type runtime struct {
	cfg       *config.Config
	db        *database.DB
	store     store.Store
	feed      *feed.Client
	ingest    *ingest.Engine
	enrich    *enrich.Engine
	selector  *alert.Selector
	publisher *publish.Publisher
	reporter  *report.Reporter
	quota     *ratelimit.Manager
}

// setup loads config and wires every component. Platforms and the text
// generator are optional: missing credentials disable them.
func setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting quakewatch", "version", Version, "build_time", BuildTime)

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	st := store.New(db)

	quota, err := ratelimit.NewManager(cfg.Redis.URL)
	if err != nil {
		// Quota accounting is advisory; run without it rather than abort.
		logger.Warn("Posting quota manager unavailable", "error", err)
		quota, _ = ratelimit.NewManager("")
	}

	var posters []publish.Poster
	if tw, err := publish.NewTwitterPoster(cfg.Twitter); err == nil {
		posters = append(posters, tw)
	} else if errors.Is(err, qerrors.ErrNotConfigured) {
		logger.Info("Twitter not configured, skipping platform")
	} else {
		return nil, err
	}
	if bs, err := publish.NewBlueskyPoster(cfg.Bluesky); err == nil {
		posters = append(posters, bs)
	} else if errors.Is(err, qerrors.ErrNotConfigured) {
		logger.Info("Bluesky not configured, skipping platform")
	} else {
		return nil, err
	}

	var gen textgen.Generator
	if g, err := textgen.New(cfg.TextGen); err == nil {
		gen = g
	} else if errors.Is(err, qerrors.ErrNotConfigured) {
		logger.Info("Text generator not configured, context replies and facts disabled")
	} else {
		return nil, err
	}

	feedClient := feed.NewClient(cfg.Feed)
	formatter := publish.NewFormatter(cfg.Feed.EventPageURL)
	imagery := publish.NewShakemapClient(cfg.Feed)
	publisher := publish.New(st, posters, formatter, gen, imagery, quota, cfg.Publish)

	return &runtime{
		cfg:       cfg,
		db:        db,
		store:     st,
		feed:      feedClient,
		ingest:    ingest.New(feedClient, st),
		enrich:    enrich.New(st, geocode.NewHTTPClient(cfg.Geocode), cfg.Enrich),
		selector:  alert.NewSelector(st),
		publisher: publisher,
		reporter:  report.New(st, publisher, formatter, gen),
		quota:     quota,
	}, nil
}

func (rt *runtime) close(ctx context.Context) {
	if err := rt.quota.Close(); err != nil {
		logger.Warn("Failed to close quota manager", "error", err)
	}
	rt.db.Close(ctx)
}

// runLive executes one full pipeline pass: ingest the period feed,
// enrich recent events, select eligible ones, and publish alerts.
func (rt *runtime) runLive(ctx context.Context, period string) error {
	feedURL, err := rt.feed.PeriodURL(period)
	if err != nil {
		return err
	}
	if _, err := rt.ingest.Upload(ctx, feedURL); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	now := time.Now().UTC()
	if _, err := rt.enrich.Enrich(ctx, now.Add(-24*time.Hour), now); err != nil {
		return fmt.Errorf("enrich: %w", err)
	}

	events, err := rt.selector.Eligible(ctx, rt.cfg.Publish.MagnitudeThreshold, rt.cfg.Publish.FreshnessWindow)
	if err != nil {
		return fmt.Errorf("select eligible events: %w", err)
	}
	rt.publisher.PublishEvents(ctx, events)
	return nil
}

func liveCmd() *cli.Command {
	return &cli.Command{
		Name:  "live",
		Usage: "run one ingest/enrich/publish pass over a recent feed window",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "period", Value: "hour", Usage: "feed period: hour, day, week, month"},
		},
		Action: func(c *cli.Context) error {
			rt, err := setup(c.Context)
			if err != nil {
				return err
			}
			defer rt.close(c.Context)
			return rt.runLive(c.Context, c.String("period"))
		},
	}
}

func summaryCmd(name, usage, period string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			rt, err := setup(c.Context)
			if err != nil {
				return err
			}
			defer rt.close(c.Context)

			// Catch up the store on the period before summarizing it, so
			// a summary run works standalone without a prior live pass.
			feedURL, err := rt.feed.PeriodURL(period)
			if err != nil {
				return err
			}
			if _, err := rt.ingest.Upload(c.Context, feedURL); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			now := time.Now().UTC()
			if _, err := rt.enrich.Enrich(c.Context, now.Add(-spanFor(period)), now); err != nil {
				return fmt.Errorf("enrich: %w", err)
			}

			return rt.reporter.Summary(c.Context, period)
		},
	}
}

func spanFor(period string) time.Duration {
	switch period {
	case "week":
		return 7 * 24 * time.Hour
	case "month":
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func dailyCmd() *cli.Command {
	return summaryCmd("daily", "post the daily earthquake summary", "day")
}

func weeklyCmd() *cli.Command {
	return summaryCmd("weekly", "post the weekly earthquake summary", "week")
}

func monthlyCmd() *cli.Command {
	return summaryCmd("monthly", "post the monthly earthquake summary", "month")
}

func factCmd() *cli.Command {
	return &cli.Command{
		Name:  "fact",
		Usage: "post a generated earthquake fact",
		Action: func(c *cli.Context) error {
			rt, err := setup(c.Context)
			if err != nil {
				return err
			}
			defer rt.close(c.Context)
			return rt.reporter.FunFact(c.Context)
		},
	}
}

func backfillCmd() *cli.Command {
	return &cli.Command{
		Name:  "backfill",
		Usage: "ingest and/or enrich a historical date range in windows",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start-date", Required: true, Usage: "range start (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "end-date", Required: true, Usage: "range end (YYYY-MM-DD)"},
			&cli.IntFlag{Name: "interval-days", Value: 7, Usage: "window size in days"},
			&cli.BoolFlag{Name: "events", Value: true, Usage: "ingest events for the range"},
			&cli.BoolFlag{Name: "locations", Usage: "enrich locations for the range"},
		},
		Action: func(c *cli.Context) error {
			start, err := time.Parse("2006-01-02", c.String("start-date"))
			if err != nil {
				return fmt.Errorf("invalid start-date: %w", err)
			}
			end, err := time.Parse("2006-01-02", c.String("end-date"))
			if err != nil {
				return fmt.Errorf("invalid end-date: %w", err)
			}

			rt, err := setup(c.Context)
			if err != nil {
				return err
			}
			defer rt.close(c.Context)

			if c.Bool("events") {
				runner := backfill.NewRunner(rt.feed, rt.ingest)
				if _, err := runner.Run(c.Context, start, end, c.Int("interval-days")); err != nil {
					return err
				}
			}
			if c.Bool("locations") {
				if _, err := rt.enrich.Enrich(c.Context, start, end); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func initdbCmd() *cli.Command {
	return &cli.Command{
		Name:  "initdb",
		Usage: "create database tables and indexes",
		Action: func(c *cli.Context) error {
			rt, err := setup(c.Context)
			if err != nil {
				return err
			}
			defer rt.close(c.Context)

			if !rt.db.IsConfigured() {
				return fmt.Errorf("initdb requires DATABASE_URL")
			}
			if err := store.InitSchema(c.Context, rt.db); err != nil {
				return err
			}
			logger.Info("Database schema initialized")
			return nil
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the status API with a periodic live pipeline",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "pipeline-interval", Value: 5 * time.Minute, Usage: "live pass interval, 0 disables"},
		},
		Action: func(c *cli.Context) error {
			rt, err := setup(c.Context)
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			ctx := c.Context

			if interval := c.Duration("pipeline-interval"); interval > 0 {
				go runPipelineLoop(ctx, rt, interval)
			}

			if rt.cfg.Metrics.Enabled {
				go startMetricsServer(rt.cfg.Metrics.Port, rt.cfg.Metrics.Path)
			}

			handler := api.NewHandler(rt.store, Version)
			addr := fmt.Sprintf("%s:%d", rt.cfg.Server.Host, rt.cfg.Server.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      handler.Router(),
				ReadTimeout:  rt.cfg.Server.ReadTimeout,
				WriteTimeout: rt.cfg.Server.WriteTimeout,
				IdleTimeout:  rt.cfg.Server.IdleTimeout,
			}

			go func() {
				logger.Info("Starting HTTP server", "address", addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("HTTP server failed", "error", err)
				}
			}()

			<-ctx.Done()
			logger.Info("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.GracefulShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", "error", err)
			}

			logger.Info("Server exited")
			return nil
		},
	}
}

func runPipelineLoop(ctx context.Context, rt *runtime, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rt.runLive(ctx, "hour"); err != nil {
				logger.Error("Live pipeline pass failed", "error", err)
			}
		}
	}
}

func startMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", "address", addr, "path", path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", "error", err)
	}
}

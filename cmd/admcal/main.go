package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"admcal/internal/calendar"
	"admcal/internal/config"
	appLog "admcal/internal/log"
	"admcal/internal/source"
	"admcal/internal/termview"
	"admcal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	print      bool
	snapshot   string
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("admcal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	dotEnv := filepath.Join(filepath.Dir(flags.configPath), ".env")
	if err := config.LoadDotEnv(dotEnv); err != nil {
		appLog.Error("failed to load .env", err, "path", dotEnv)
		os.Exit(1)
	}
	conf.ApplyEnv()
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.snapshot != "" {
		conf.SnapshotPath = flags.snapshot
	}
	if !flags.debug {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	sources := source.FromConfig(conf)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"fetch_timeout", conf.FetchTimeout,
		"sources", len(sources),
		"once", flags.once,
		"print", flags.print,
		"snapshot", flags.snapshot,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	loader := calendar.NewLoader(sources, conf.FetchTimeout)
	server := web.NewServer(conf, loader)

	afterLoad := func(ctx context.Context, st calendar.LoadStatus) {
		if st.State != calendar.StateLoaded {
			return
		}
		if flags.snapshot != "" {
			if err := server.CaptureSnapshot(ctx); err != nil {
				appLog.Error("snapshot failed", err, "path", conf.SnapshotPath)
			}
		}
	}

	st := loader.Load(ctx)
	if flags.print || flags.once {
		printMonth(conf, loader)
	}
	afterLoad(ctx, st)

	if flags.once {
		if st.State == calendar.StateFailed {
			os.Exit(1)
		}
		appLog.Info("admcal exiting")
		return
	}

	if conf.RefreshCron != "" {
		c := cron.New(cron.WithLocation(conf.Location()))
		_, err := c.AddFunc(conf.RefreshCron, func() {
			// A failed load stays failed until POST /api/reload.
			if !loader.ShouldRefresh() {
				appLog.Warn("scheduled refresh skipped after failed load", "retry", "POST /api/reload")
				return
			}
			afterLoad(ctx, loader.Load(ctx))
		})
		if err != nil {
			appLog.Error("failed to schedule refresh", err, "refresh", conf.RefreshCron)
			os.Exit(1)
		}
		c.Start()
		defer c.Stop()
	}

	if err := server.Run(ctx); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		os.Exit(1)
	}

	// Let in-flight cron jobs observe the cancellation.
	time.Sleep(100 * time.Millisecond)
	appLog.Info("admcal exiting")
}

// printMonth writes the current month and the full list to stdout.
func printMonth(conf *config.Config, loader *calendar.Loader) {
	events, _, err := loader.Snapshot()
	if err != nil {
		appLog.Error("nothing to print", err)
		return
	}
	e := calendar.NewEngine(events, calendar.Options{
		WeekStart: conf.WeekStart,
		Today:     time.Now().In(conf.Location()),
	})
	if err := termview.Render(os.Stdout, termview.FromEngine(e), termview.Options{}); err != nil {
		appLog.Error("failed to print calendar", err)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file (created with defaults if missing)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load events once, print the current month and exit")
	flag.BoolVar(&cfg.print, "print", false, "Print the current month to stdout after the first load")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Write a PNG snapshot of /calendar to this path after each load")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

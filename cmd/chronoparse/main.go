package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"chronoparse/internal/chrono"
	"chronoparse/internal/config"
	appLog "chronoparse/internal/log"
	"chronoparse/internal/registry"
	"chronoparse/internal/starlarkchrono"
	"chronoparse/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	pattern    string
	name       string
	script     string
	once       bool
	debug      bool
	texts      []string
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := loadConfig(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		exit(1)
	}
	if err := applyLogConfig(conf, flags.debug); err != nil {
		appLog.Error("invalid log settings", err)
		exit(1)
	}
	defer appLog.Sync()

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	reg, err := registry.New(conf)
	if err != nil {
		appLog.Error("failed to compile patterns", err)
		exit(1)
	}

	switch {
	case flags.script != "":
		if _, err := starlarkchrono.ExecFile(flags.script, nil, os.Stdout); err != nil {
			appLog.Error("script failed", err, "script", flags.script)
			exit(1)
		}
		return
	case len(flags.texts) > 0:
		if failed := parseTexts(os.Stdout, reg, flags); failed > 0 {
			exit(2)
		}
		return
	}

	appLog.Info("chronoparse starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"default_pattern", conf.DefaultPattern,
		"patterns", len(conf.Patterns),
		"ics_count", len(conf.ICS),
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := web.NewServer(conf, reg)

	if flags.once {
		resp, err := srv.RefreshEvents(ctx, conf.HorizonDays, 1)
		if err != nil {
			appLog.Error("event refresh failed", err)
			exit(1)
		}
		appLog.Info("event refresh done", "occurrences", len(resp.Occurrences))
		return
	}

	sched, err := startScheduler(ctx, conf, srv)
	if err != nil {
		appLog.Error("failed to start scheduler", err, "refresh", conf.RefreshCron)
		exit(1)
	}

	if err := srv.Serve(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
	}

	<-sched.Stop().Done()
	appLog.Info("chronoparse exiting")
}

// exit flushes the logger before terminating; os.Exit skips deferred calls.
func exit(code int) {
	appLog.Sync()
	os.Exit(code)
}

// loadConfig loads the config file. When a first run cannot write the
// default file, the in-memory defaults are used so parse and script modes
// still work without a writable config directory.
func loadConfig(path string) (*config.Config, error) {
	conf, err := config.Load(path)
	if err != nil && conf != nil {
		appLog.Warn("cannot write default config; using built-in defaults", "config_path", path, "err", err)
		return conf, nil
	}
	return conf, err
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/chronoparse/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.pattern, "pattern", "", "Pattern for positional timestamps, e.g. '{:%FT%T%z}'")
	flag.StringVar(&cfg.name, "name", "", "Named pattern from the config for positional timestamps")
	flag.StringVar(&cfg.script, "script", "", "Run a Starlark script with the chrono module and exit")
	flag.BoolVar(&cfg.once, "once", false, "Refresh ICS sources once and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()
	cfg.texts = flag.Args()

	return cfg
}

// applyLogConfig applies the configured level and format. -debug wins over
// the config level.
func applyLogConfig(conf *config.Config, debug bool) error {
	if err := appLog.SetFormat(appLog.Format(conf.LogFormat)); err != nil {
		return err
	}
	if debug {
		return nil
	}
	lvl, err := appLog.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	appLog.SetLevel(lvl)
	return nil
}

// parseTexts prints one line per positional timestamp and returns the
// number of failures.
func parseTexts(w io.Writer, reg *registry.Registry, flags flagConfig) int {
	results, err := reg.ParseAll(flags.name, flags.pattern, flags.texts)
	if err != nil {
		appLog.Error("cannot resolve pattern", err, "name", flags.name, "pattern", flags.pattern)
		return len(flags.texts)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			var perr *chrono.Error
			if errors.As(r.Err, &perr) {
				fmt.Fprintf(w, "%s\terror\t%s\t%s\t%d\n", r.Text, perr.Kind, perr.Field, perr.Pos)
			} else {
				fmt.Fprintf(w, "%s\terror\t%v\n", r.Text, r.Err)
			}
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", r.Text, r.EpochMillis(), r.Time.Format(time.RFC3339Nano))
	}
	return failed
}

// startScheduler registers the ICS refresh job on conf.RefreshCron and
// warms the events cache once.
func startScheduler(ctx context.Context, conf *config.Config, srv *web.Server) (*cron.Cron, error) {
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	refresh := func() {
		if _, err := srv.RefreshEvents(ctx, conf.HorizonDays, 1); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}
	if _, err := c.AddFunc(conf.RefreshCron, refresh); err != nil {
		return nil, err
	}
	c.Start()
	if len(conf.ICS) > 0 {
		go refresh()
	}
	return c, nil
}

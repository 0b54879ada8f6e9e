package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"famcal/internal/config"
	"famcal/internal/feed"
	"famcal/internal/ics"
	"famcal/internal/layout"
	appLog "famcal/internal/log"
	"famcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	day        string
}

func main() {
	// .env is optional.
	_ = godotenv.Load()

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags, os.Stdout); err != nil {
		appLog.Error("famcal failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conf *config.Config, flags flagConfig, stdout io.Writer) error {
	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"ics_count", len(conf.ICS),
		"events_file", conf.EventsFile,
		"window", conf.Layout.WindowStart+"-"+conf.Layout.WindowEnd,
		"width_mode", conf.Layout.WidthMode,
		"match_mode", conf.Layout.MatchMode,
		"once", flags.once,
	)

	store := feed.NewStore(feed.Options{
		EventsFile:   conf.EventsFile,
		Sources:      sources(conf),
		Fetcher:      ics.NewFetcher(conf.CacheDir, nil),
		Location:     loc,
		BackfillDays: conf.BackfillDays,
		HorizonDays:  conf.HorizonDays,
	})

	if flags.once {
		return dumpDay(ctx, store, conf, loc, flags.day, stdout)
	}

	if err := store.Refresh(ctx); err != nil {
		// Serve the empty snapshot; the next scheduled refresh may succeed.
		appLog.Error("initial refresh failed", err)
	}

	sched := cron.New(cron.WithLocation(loc))
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		if err := store.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", conf.RefreshCron, err)
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()

	err = web.NewServer(conf, store).ListenAndServe(ctx)
	appLog.Info("famcal exiting")
	return err
}

// dumpDay refreshes once and writes one day's layout as JSON.
func dumpDay(ctx context.Context, store *feed.Store, conf *config.Config, loc *time.Location, day string, w io.Writer) error {
	date := time.Now().In(loc)
	if day != "" {
		var err error
		date, err = time.ParseInLocation("2006-01-02", day, loc)
		if err != nil {
			return fmt.Errorf("invalid -day %q: %w", day, err)
		}
	}

	if err := store.Refresh(ctx); err != nil {
		return err
	}

	view, err := layout.LayoutDay(store.Snapshot().Events, date, conf.LayoutConfig())
	if err != nil {
		return err
	}
	for _, warn := range view.Warnings {
		appLog.Warn("layout warning", "code", warn.Code, "event_id", warn.EventID, "detail", warn.Message)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func sources(conf *config.Config) []ics.Source {
	out := make([]ics.Source, 0, len(conf.ICS))
	for _, c := range conf.ICS {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			id = c.Name
		}
		if id == "" {
			id = c.URL
		}
		out = append(out, ics.Source{ID: id, URL: c.URL, Color: c.Color})
	}
	return out
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", envOr("FAMCAL_CONFIG", "/etc/famcal/config.yaml"), "Path to config file")
	flag.StringVar(&cfg.listen, "listen", os.Getenv("FAMCAL_LISTEN"), "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh once, print one day's layout as JSON and exit")
	flag.StringVar(&cfg.day, "day", "", "Day to print with -once (YYYY-MM-DD, default today)")

	flag.Parse()

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vehicle-registration-visualizer/pkg/aggregate"
	"vehicle-registration-visualizer/pkg/logger"
)

var (
	configPath     = flag.String("config", "", "YAML config file")
	httpPort       = flag.Int("port", 8080, "HTTP port")
	staticDir      = flag.String("static_dir", "./static", "Directory of map and chart pages")
	logMode        = flag.String("log_mode", "dev", "Logger mode: dev or prod")
	csvFile        = flag.String("csv_file", "", "Registration CSV file")
	csvURL         = flag.String("csv_url", "", "Registration CSV URL")
	ckanJsonURL    = flag.String("ckan_json_url", "", "CKAN datastore_search URL")
	sqlitePath     = flag.String("sqlite_path", "", "SQLite database with a registration table")
	postgresDSN    = flag.String("postgres_dsn", "", "PostgreSQL DSN with a registration table")
	refreshMinSecs = flag.Int("refresh_min_secs", 300, "Minimum reload interval in seconds, 0 loads once")
	geoPolicy      = flag.String("geo_policy", "first", "Default representative location: first or mean")
)

func main() {
	flag.Parse()

	cfg, err := resolveConfig(*configPath, applyFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	source, err := selectSource(cfg)
	if err != nil {
		log.Fatal("no record source", "error", err)
	}
	geo, _ := aggregate.ParseGeoPolicy(cfg.GeoPolicy)

	hub := newHub(log)
	poll := newPoller(source, cfg.RefreshMinSecs, cfg.FetchTimeout, log.With("component", "poller"),
		aggregate.WithGeoPolicy(geo))
	poll.onChange = hub.broadcast

	srv := &server{data: poll, hub: hub, log: log, staticDir: cfg.StaticDir}
	mux := http.NewServeMux()
	srv.registerRoutes(mux)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           withLogging(log, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting", "url", fmt.Sprintf("http://localhost:%d/", cfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return poll.run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		log.Info("HTTP server shut down successfully")
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("exit", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

// applyFlags copies explicitly set flags over the file config.
func applyFlags(cfg *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *httpPort
		case "static_dir":
			cfg.StaticDir = *staticDir
		case "log_mode":
			cfg.LogMode = *logMode
		case "csv_file":
			cfg.Source.CsvFile = *csvFile
		case "csv_url":
			cfg.Source.CsvURL = *csvURL
		case "ckan_json_url":
			cfg.Source.CkanJsonURL = *ckanJsonURL
		case "sqlite_path":
			cfg.Source.SqlitePath = *sqlitePath
		case "postgres_dsn":
			cfg.Source.PostgresDSN = *postgresDSN
		case "refresh_min_secs":
			cfg.RefreshMinSecs = *refreshMinSecs
		case "geo_policy":
			cfg.GeoPolicy = *geoPolicy
		}
	})
}

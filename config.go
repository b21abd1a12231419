package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vehicle-registration-visualizer/pkg/aggregate"
)

type SourceConfig struct {
	CsvFile       string `yaml:"csv_file"`
	CsvURL        string `yaml:"csv_url"`
	CkanJsonURL   string `yaml:"ckan_json_url"`
	SqlitePath    string `yaml:"sqlite_path"`
	SqliteTable   string `yaml:"sqlite_table"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	PostgresTable string `yaml:"postgres_table"`
}

type Config struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	RefreshMinSecs  int           `yaml:"refresh_min_secs"`
	StaticDir       string        `yaml:"static_dir"`
	LogMode         string        `yaml:"log_mode"`
	// GeoPolicy is the default for views that do not pass geo=.
	GeoPolicy string       `yaml:"geo_policy"`
	Source    SourceConfig `yaml:"source"`
}

func defaultConfig() Config {
	return Config{
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
		FetchTimeout:    30 * time.Second,
		RefreshMinSecs:  300,
		StaticDir:       "./static",
		LogMode:         "dev",
		GeoPolicy:       "first",
		Source: SourceConfig{
			SqliteTable:   "vehicles",
			PostgresTable: "vehicles",
		},
	}
}

// resolveConfig loads path, applies override and validates the result
// once, so a command-line value can repair a bad file value.
func resolveConfig(path string, override func(*Config)) (Config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return cfg, err
	}
	if override != nil {
		override(&cfg)
	}
	return cfg, cfg.validate()
}

// loadConfig reads path over the defaults without validating. An empty path
// returns the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.FetchTimeout <= 0 {
		return errors.New("fetch_timeout must be positive")
	}
	if _, err := aggregate.ParseGeoPolicy(c.GeoPolicy); err != nil {
		return err
	}
	return nil
}

// selectSource picks the one configured record source.
func selectSource(c Config) (RecordSource, error) {
	s := c.Source
	var configured []string
	for name, v := range map[string]string{
		"csv_file":      s.CsvFile,
		"csv_url":       s.CsvURL,
		"ckan_json_url": s.CkanJsonURL,
		"sqlite_path":   s.SqlitePath,
		"postgres_dsn":  s.PostgresDSN,
	} {
		if strings.TrimSpace(v) != "" {
			configured = append(configured, name)
		}
	}
	if len(configured) != 1 {
		return nil, fmt.Errorf("provide exactly one of csv_file, csv_url, ckan_json_url, sqlite_path, postgres_dsn (got %d)", len(configured))
	}
	switch {
	case s.CsvFile != "":
		return NewCsvFileRecordSource(s.CsvFile), nil
	case s.CsvURL != "":
		return NewCsvHttpRecordSource(s.CsvURL, c.FetchTimeout), nil
	case s.CkanJsonURL != "":
		return NewCkanJsonRecordSource(s.CkanJsonURL, c.FetchTimeout), nil
	case s.SqlitePath != "":
		return NewSqliteRecordSource(s.SqlitePath, s.SqliteTable), nil
	default:
		return NewPostgresRecordSource(s.PostgresDSN, s.PostgresTable), nil
	}
}

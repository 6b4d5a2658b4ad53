// Package config loads the YAML configuration of a wherekit deployment and
// turns it into a predicate builder, a logger and a registry of data sources.
//
//	logger:
//	  level: info
//	  type: colored-text
//	dialect: sqlserver
//	source: main
//	max_materialized_rows: 10000
//	slow_materialization: 250ms
//	sources:
//	  - name: main
//	    dsn: sqlserver://app@db/main
//	  - name: replica
//	    parent: main
//	  - name: reporting
//	    dialect: postgres
//	    dsn: postgres://reports@warehouse/reports?sslmode=disable
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/yaml.v3"

	"github.com/syssam/wherekit/dialect"
	"github.com/syssam/wherekit/dialect/sql"
)

type Config struct {
	Logger               LoggerConfig   `yaml:"logger"`
	Dialect              string         `yaml:"dialect"`
	Source               string         `yaml:"source"`
	AllowMaterialization *bool          `yaml:"allow_materialization"`
	MaxMaterializedRows  int            `yaml:"max_materialized_rows"`
	SlowMaterialization  time.Duration  `yaml:"slow_materialization"`
	Sources              []SourceConfig `yaml:"sources"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Type   string `yaml:"type"`
	Output string `yaml:"output"`
}

type SourceConfig struct {
	Name    string `yaml:"name"`
	Parent  string `yaml:"parent"`
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`
}

// Load reads and decodes the configuration file at path. Unknown keys are
// rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read config: %w", err)
	}
	return Decode(data)
}

// Decode decodes a YAML configuration document.
func Decode(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("cannot decode config: %w", err)
	}
	return cfg, nil
}

// Parse builds the logger, the data source registry and a builder bound to
// the configured default source.
func (cfg Config) Parse() (*sql.Builder, *Sources, *slog.Logger, error) {
	logger, err := parseLoggerConfig(cfg.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cannot create logger: %w", err)
	}

	name := cfg.Dialect
	if name == "" {
		name = dialect.SQLServer
	}
	name, err = dialect.Normalize(name)
	if err != nil {
		return nil, nil, logger, fmt.Errorf("cannot parse dialect: %w", err)
	}

	sources, err := newSources(name, cfg.Sources)
	if err != nil {
		return nil, nil, logger, fmt.Errorf("cannot create sources: %w", err)
	}

	opts := []sql.Option{
		sql.WithLogger(logger),
		sql.WithMaterializer(sql.NewMaterializer(cfg.materializerOptions(logger)...)),
	}
	if cfg.Source != "" {
		src, ok := sources.Get(cfg.Source)
		if !ok {
			return nil, nil, logger, fmt.Errorf("default source `%s` is not declared", cfg.Source)
		}
		opts = append(opts, sql.WithSource(src))
		name = sources.Dialect(cfg.Source)
	}

	b, err := sql.NewBuilder(name, opts...)
	if err != nil {
		return nil, nil, logger, fmt.Errorf("cannot create builder: %w", err)
	}
	return b, sources, logger, nil
}

func (cfg Config) materializerOptions(logger *slog.Logger) []sql.MaterializerOption {
	opts := []sql.MaterializerOption{
		sql.WithMaterializerLogger(logger),
		sql.WithSlowLog(),
	}
	if cfg.AllowMaterialization != nil && !*cfg.AllowMaterialization {
		opts = append(opts, sql.DisallowMaterialization())
	}
	if cfg.MaxMaterializedRows > 0 {
		opts = append(opts, sql.WithMaxRows(cfg.MaxMaterializedRows))
	}
	if cfg.SlowMaterialization > 0 {
		opts = append(opts, sql.WithSlowThreshold(cfg.SlowMaterialization))
	}
	return opts
}

func parseLoggerConfig(cfg LoggerConfig) (*slog.Logger, error) {
	var handler slog.Handler

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var w io.Writer
	switch cfg.Output {
	case "stdout", "":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		return nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	switch cfg.Type {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text", "":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	default:
		return nil, fmt.Errorf("invalid log type: %s", cfg.Type)
	}

	return slog.New(handler), nil
}

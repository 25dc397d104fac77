package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/simcore/locomotion/internal/config"
	"github.com/simcore/locomotion/internal/storage"
	"github.com/simcore/locomotion/internal/storage/influx"
	"github.com/simcore/locomotion/internal/storage/memory"
	pgstorage "github.com/simcore/locomotion/internal/storage/postgres"
	sqlitestorage "github.com/simcore/locomotion/internal/storage/sqlite"
)

const postgresFlushInterval = 2 * time.Second

// createStorageBackend builds the configured backend. With influx enabled
// next to another primary backend, points are mirrored to InfluxDB too.
func createStorageBackend(storageCfg config.StorageConfig, logger *slog.Logger, sessionStart time.Time) (storage.Backend, error) {
	primary, err := createPrimaryBackend(storageCfg, logger, sessionStart)
	if err != nil {
		return nil, err
	}
	if storageCfg.Type == "influx" || !storageCfg.Influx.Enabled {
		return primary, nil
	}
	logger.Info("InfluxDB mirror enabled", "url", storageCfg.Influx.URL())
	return storage.Multi{primary, influx.New(influxLogger(), storageCfg.Influx)}, nil
}

func createPrimaryBackend(storageCfg config.StorageConfig, logger *slog.Logger, sessionStart time.Time) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		backend, err := pgstorage.New(storageCfg.DB, logger, postgresFlushInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to create Postgres backend: %w", err)
		}
		logger.Info("Postgres storage backend initialized", "host", storageCfg.DB.Host)
		return backend, nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     sessionDBPath(storageCfg.SQLite.Path, sessionStart),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized")
		return backend, nil

	case "influx":
		logger.Info("InfluxDB storage backend initialized", "url", storageCfg.Influx.URL())
		return influx.New(influxLogger(), storageCfg.Influx), nil

	case "memory", "":
		logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// sessionDBPath stamps the configured database path with the session start so
// consecutive runs do not overwrite each other's dumps.
func sessionDBPath(path string, sessionStart time.Time) string {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".db"
	}
	base := path[:len(path)-len(filepath.Ext(path))]
	return fmt.Sprintf("%s_%s%s", base, sessionStart.Format("20060102_150405"), ext)
}

// influxLogger writes the InfluxDB client's zerolog output to the session log file.
func influxLogger() zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339, NoColor: true}
	if LogFile != nil {
		out.Out = LogFile
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(zerologLevel(config.GetString("logLevel")))
}

func zerologLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

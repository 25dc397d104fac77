package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gorm.io/gorm"

	"github.com/simcore/locomotion/internal/config"
	"github.com/simcore/locomotion/internal/database"
	gormstorage "github.com/simcore/locomotion/internal/storage/gorm"
	"github.com/simcore/locomotion/internal/storage/memory"
)

// openExportDB opens the SQLite file at path, or the configured Postgres
// server when path is empty.
func openExportDB(path string) (*gorm.DB, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return database.OpenSQLite(path)
	}
	return database.OpenPostgres(config.GetStorageConfig().DB)
}

// exportRuns writes one JSON recording per run ID. A failing run does not
// stop the others.
func exportRuns(dbPath string, runIDs []string, memCfg config.MemoryConfig) error {
	Logger.Info("Connecting to database...", "sqlite", dbPath)
	db, err := openExportDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	Logger.Info("Database connection established.")

	var errs []error
	for _, arg := range runIDs {
		id, err := strconv.ParseUint(arg, 10, 0)
		if err != nil || id == 0 {
			errs = append(errs, fmt.Errorf("invalid run ID %q", arg))
			continue
		}

		mem := memory.New(memCfg)
		if err := gormstorage.Replay(db, uint(id), mem); err != nil {
			Logger.Error("Failed to export run", "runId", id, "error", err)
			errs = append(errs, fmt.Errorf("run %d: %w", id, err))
			continue
		}
		Logger.Info("Run exported", "runId", id, "file", mem.ExportedFilePath())
		fmt.Println(mem.ExportedFilePath())
	}
	return errors.Join(errs...)
}

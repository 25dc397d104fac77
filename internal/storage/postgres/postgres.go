// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with PostGIS geometry columns. Writes go through the shared GORM backend.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/simcore/locomotion/internal/config"
	"github.com/simcore/locomotion/internal/database"
	gormstorage "github.com/simcore/locomotion/internal/storage/gorm"
)

// Backend is the GORM backend bound to a postgres connection.
type Backend struct {
	*gormstorage.Backend
	cfg config.DBConfig
}

// New connects to postgres and wraps the connection in a GORM backend.
func New(cfg config.DBConfig, logger *slog.Logger, flushInterval time.Duration) (*Backend, error) {
	db, err := database.OpenPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:            db,
			Logger:        logger,
			FlushInterval: flushInterval,
			BatchSize:     10000,
		}),
		cfg: cfg,
	}, nil
}

// Close flushes pending rows and closes the connection pool.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

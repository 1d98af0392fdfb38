package repository

import (
	"github.com/taskflow/taskflow/internal/common/config"
	"github.com/taskflow/taskflow/internal/common/logger"
	"github.com/taskflow/taskflow/internal/db"
)

// Open returns the entity store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (Repository, error) {
	if cfg.Driver == config.DriverMemory {
		log.Info("Using in-memory entity store")
		return NewMemoryRepository(), nil
	}
	pool, err := db.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	return NewSQLRepository(pool), nil
}

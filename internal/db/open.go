package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/common/config"
	"github.com/taskflow/taskflow/internal/common/logger"
	"github.com/taskflow/taskflow/internal/db/dialect"
	"github.com/taskflow/taskflow/internal/db/migrations"
)

// Open connects to the configured SQL database and brings its schema up to date.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (*Pool, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		writer, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		// The reader opens in read-only mode, so the schema must exist first.
		if err := migrations.Up(writer, dialect.SQLite3); err != nil {
			_ = writer.Close()
			return nil, err
		}
		reader, err := OpenSQLiteReader(cfg.Path)
		if err != nil {
			_ = writer.Close()
			return nil, err
		}
		log.Info("Database initialized", zap.String("db_driver", cfg.Driver), zap.String("db_path", cfg.Path))
		return NewPool(sqlx.NewDb(writer, dialect.SQLite3), sqlx.NewDb(reader, dialect.SQLite3)), nil

	case config.DriverPostgres:
		conn, err := OpenPostgres(cfg.PostgresDSN(), cfg.MaxConns, cfg.MinConns)
		if err != nil {
			return nil, err
		}
		if err := migrations.Up(conn, dialect.PGX); err != nil {
			_ = conn.Close()
			return nil, err
		}
		log.Info("Database initialized", zap.String("db_driver", cfg.Driver), zap.String("db_host", cfg.Host))
		shared := sqlx.NewDb(conn, dialect.PGX)
		return NewPool(shared, shared), nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

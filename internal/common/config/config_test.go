package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Board.RecentlyViewedLimit)
	assert.False(t, cfg.Board.AllowMemberSelfRemoval)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("TASKFLOW_SERVER_PORT", "9191")
	t.Setenv("TASKFLOW_DATABASE_DRIVER", "memory")
	t.Setenv("TASKFLOW_BOARD_ALLOW_MEMBER_SELF_REMOVAL", "true")
	t.Setenv("TASKFLOW_BOARD_RECENTLY_VIEWED_LIMIT", "4")

	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.True(t, cfg.Board.AllowMemberSelfRemoval)
	assert.Equal(t, 4, cfg.Board.RecentlyViewedLimit)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("database:\n  driver: postgres\n  host: db.internal\n  user: app\n  dbName: boards\nauth:\n  bcryptCost: 4\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	cfg, err := LoadWithPath(dir)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://app:@db.internal:5432/boards?sslmode=disable", cfg.Database.PostgresDSN())
	assert.Equal(t, 4, cfg.Auth.BcryptCost)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	t.Setenv("TASKFLOW_DATABASE_DRIVER", "mongo")

	_, err := LoadWithPath(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
}

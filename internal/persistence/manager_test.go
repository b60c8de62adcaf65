package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 10, config.MaxOpenConns)
	assert.Equal(t, 5, config.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, config.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, config.ConnMaxIdleTime)
	assert.Equal(t, 30*time.Second, config.QueryTimeout)
	assert.False(t, config.Enabled) // Should be disabled by default
}

func TestNewManagerDisabled(t *testing.T) {
	manager, err := NewManager(Config{Enabled: false})
	require.NoError(t, err)

	assert.NotNil(t, manager)
	assert.False(t, manager.IsEnabled())
	assert.Nil(t, manager.Ledger())
	assert.Nil(t, manager.Recent())
	assert.Nil(t, manager.DB())

	// Health should work even when disabled.
	health := manager.Health().Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Contains(t, health.Errors[0], "disabled")

	assert.NoError(t, manager.Close())
}

func TestNewManagerMissingDSN(t *testing.T) {
	_, err := NewManager(Config{Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")
}

func TestHealthCheckerEnabled(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	checker := &healthChecker{
		enabled: true,
		db:      sqlx.NewDb(mockDB, "postgres"),
		timeout: 5 * time.Second,
	}

	mock.ExpectPing()

	health := checker.Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Empty(t, health.Errors)
	assert.GreaterOrEqual(t, health.ResponseTimeMS, int64(0))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheckerPingFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	checker := &healthChecker{
		enabled: true,
		db:      sqlx.NewDb(mockDB, "postgres"),
		timeout: 5 * time.Second,
	}

	mock.ExpectPing().WillReturnError(sqlmock.ErrCancelled)

	health := checker.Health(context.Background())
	assert.False(t, health.Healthy)
	require.Len(t, health.Errors, 1)
	assert.Contains(t, health.Errors[0], "ping failed")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheckerStats(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	checker := &healthChecker{
		enabled: true,
		db:      sqlx.NewDb(mockDB, "postgres"),
		timeout: 5 * time.Second,
	}

	stats := checker.Stats(context.Background())

	assert.True(t, stats["enabled"].(bool))
	assert.Contains(t, stats, "max_open_connections")
	assert.Contains(t, stats, "open_connections")
	assert.Contains(t, stats, "in_use")
	assert.Contains(t, stats, "idle")

	assert.NoError(t, mock.ExpectationsWereMet())
}

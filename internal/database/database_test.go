package database

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/config"
)

func TestBuildDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "ytfetch",
		Password: "secret",
		DBName:   "history",
		SSLMode:  "require",
		MaxConns: 8,
		MinConns: 1,
	}

	poolConfig, err := pgxpool.ParseConfig(buildDSN(cfg))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", poolConfig.ConnConfig.Host)
	assert.Equal(t, uint16(5433), poolConfig.ConnConfig.Port)
	assert.Equal(t, "ytfetch", poolConfig.ConnConfig.User)
	assert.Equal(t, "history", poolConfig.ConnConfig.Database)
	assert.Equal(t, int32(8), poolConfig.MaxConns)
	assert.Equal(t, int32(1), poolConfig.MinConns)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultHistoryLimit, clampLimit(0))
	assert.Equal(t, defaultHistoryLimit, clampLimit(-3))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, maxHistoryLimit, clampLimit(10000))
}

func TestSchema(t *testing.T) {
	assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS downloads")
	for _, column := range []string{"video_id", "choice", "status", "error_msg", "duration_ms", "created_at"} {
		assert.Contains(t, Schema, column)
	}
}

func TestNewRepositoryDefaultsLogger(t *testing.T) {
	repo := NewRepository(&DB{}, nil)

	require.NotNil(t, repo.logger)
	assert.NotPanics(t, func() {
		repo.logger.LogDatabaseOperation("SELECT downloads", 0, nil)
	})
}

package database

import (
	"context"
	"path/filepath"
	"testing"

	"meal-recommender/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "recipes.db")

	db, err := Open(&config.StoreConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer Close(db)

	assert.NoError(t, Ping(context.Background(), db))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(&config.StoreConfig{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestNewRedisClientDisabled(t *testing.T) {
	client, err := NewRedisClient(context.Background(), &config.RedisConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, client)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, DefaultDatabaseURL, cfg.Database.URL)
	assert.Equal(t, "admin", cfg.Auth.AdminUsername)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 5, cfg.Auth.LoginRatePerMinute)
	assert.Equal(t, 5*time.Second, cfg.Global.ShutdownTimeout)
}

func TestNewConfigFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("LOG_FORMAT", "json")

	cfg := NewConfig()

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "file:test.db", cfg.Database.URL)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionTTL)
	assert.Equal(t, "json", cfg.Log.Format)
}

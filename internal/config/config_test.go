package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "Australia/Sydney", cfg.Engine.Timezone)
	assert.Equal(t, 52, cfg.Engine.HorizonWeeks)
	assert.Equal(t, 2, cfg.Engine.BufferWeeks)
	assert.Equal(t, 16, cfg.Engine.MaxParallel)
	assert.Equal(t, 60*time.Second, cfg.Engine.OuterTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("HORIZON_WEEKS", "26")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("LEAVE_SYNC_ENABLED", "false")

	cfg := Load()

	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, 26, cfg.Engine.HorizonWeeks)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.False(t, cfg.Sync.Enabled)
}

func TestParseHelpersFallBack(t *testing.T) {
	t.Setenv("HORIZON_WEEKS", "not-a-number")
	t.Setenv("ALLOCATION_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 52, cfg.Engine.HorizonWeeks)
	assert.Equal(t, 60*time.Second, cfg.Engine.OuterTimeout)
}

func TestGetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "svc", Password: "pw", Database: "alloc", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=svc password=pw dbname=alloc sslmode=disable", c.GetDSN())
}

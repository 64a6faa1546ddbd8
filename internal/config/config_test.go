package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "condo-scheduler", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 7, cfg.FollowUp.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.FollowUp.RetryInterval())
	assert.Equal(t, 4*time.Hour, cfg.FollowUp.InitialDelay())
	assert.Equal(t, time.Hour, cfg.FollowUp.TickInterval())
	assert.Equal(t, 10*time.Second, cfg.Scheduler.SlotLockTTL())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("FOLLOWUP_MAX_ATTEMPTS", "3")
	t.Setenv("FOLLOWUP_RETRY_INTERVAL_HOURS", "12")
	t.Setenv("SCHEDULER_BLOCKS_JSON", `[{"id":"AM","start":"08:00","end":"12:00","capacity":4}]`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 3, cfg.FollowUp.MaxAttempts)
	assert.Equal(t, 12*time.Hour, cfg.FollowUp.RetryInterval())
	assert.NotEmpty(t, cfg.Scheduler.BlocksJSON)
}

func TestLoadIgnoresMalformedInts(t *testing.T) {
	t.Setenv("FOLLOWUP_MAX_ATTEMPTS", "seven")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.FollowUp.MaxAttempts)
}

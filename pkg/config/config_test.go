package config_test

import (
	"testing"

	"github.com/P-U-C/b1e55ed/pkg/config"
	"github.com/stretchr/testify/assert"
)

// TestLoad_Defaults verifies that Load() returns conservative defaults
// (karma disabled, paper mode) when no environment variables are set.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KARMA_ENABLED", "")
	t.Setenv("EXECUTION_MODE", "")

	cfg := config.Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "", cfg.DatabaseURL) // empty selects embedded SQLite
	assert.False(t, cfg.KarmaEnabled)
	assert.Equal(t, "paper", cfg.ExecutionMode)
	assert.Equal(t, 0.03, cfg.KillSwitchL1DailyLossPct)
	assert.Equal(t, 0.30, cfg.KillSwitchL4MaxDrawdownPct)
}

// TestLoad_Overrides verifies that environment variables correctly
// override default values.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DATABASE_URL", "postgres://production:5432/db")
	t.Setenv("KARMA_ENABLED", "true")
	t.Setenv("KARMA_PERCENTAGE", "0.1")
	t.Setenv("EXECUTION_MODE", "live")

	cfg := config.Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "postgres://production:5432/db", cfg.DatabaseURL)
	assert.True(t, cfg.KarmaEnabled)
	assert.Equal(t, 0.1, cfg.KarmaPercentage)
	assert.Equal(t, "live", cfg.ExecutionMode)
}

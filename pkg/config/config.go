package config

import (
	"os"
	"strconv"
)

// Config holds node configuration, loaded once at startup and treated as
// read-only for the lifetime of the process — changes require a restart.
type Config struct {
	Port        string
	LogLevel    string
	DatabaseURL string // empty selects embedded SQLite (lite mode)
	EventLogDir string

	CycleIntervalSeconds int
	CycleDeadlineSeconds int
	PhaseDeadlineSeconds int

	EntryThreshold   float64
	CTSTrigger       float64
	BaseSizeMinor    int64
	BaseSizeCurrency string
	StalenessSeconds int

	KillSwitchL1DailyLossPct    float64
	KillSwitchL2PortfolioHeat   float64
	KillSwitchL3CrisisThreshold float64
	KillSwitchL4MaxDrawdownPct  float64

	KarmaEnabled         bool
	KarmaPercentage      float64
	KarmaTreasuryAddress string
	ExecutionMode        string // "paper" | "live"

	OTLPEndpoint string
}

// Load loads configuration from environment variables, falling back to
// conservative defaults (karma off, paper mode, embedded SQLite) so a node
// never boots into a more dangerous posture than the operator asked for.
func Load() *Config {
	return &Config{
		Port:        envOr("PORT", "8080"),
		LogLevel:    envOr("LOG_LEVEL", "INFO"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		EventLogDir: envOr("EVENT_LOG_DIR", "data/eventlog"),

		CycleIntervalSeconds: envInt("CYCLE_INTERVAL_SECONDS", 300),
		CycleDeadlineSeconds: envInt("CYCLE_DEADLINE_SECONDS", 10),
		PhaseDeadlineSeconds: envInt("PHASE_DEADLINE_SECONDS", 3),

		EntryThreshold:   envFloat("ENTRY_THRESHOLD", 0.7),
		CTSTrigger:       envFloat("CTS_TRIGGER", 0.75),
		BaseSizeMinor:    int64(envInt("BASE_SIZE_MINOR", 10000)),
		BaseSizeCurrency: envOr("BASE_SIZE_CURRENCY", "USD"),
		StalenessSeconds: envInt("STALENESS_SECONDS", 900),

		KillSwitchL1DailyLossPct:    envFloat("KILL_SWITCH_L1_DAILY_LOSS_PCT", 0.03),
		KillSwitchL2PortfolioHeat:   envFloat("KILL_SWITCH_L2_PORTFOLIO_HEAT_PCT", 0.06),
		KillSwitchL3CrisisThreshold: envFloat("KILL_SWITCH_L3_CRISIS_CONFIDENCE", 0.8),
		KillSwitchL4MaxDrawdownPct:  envFloat("KILL_SWITCH_L4_MAX_DRAWDOWN_PCT", 0.30),

		KarmaEnabled:         os.Getenv("KARMA_ENABLED") == "true",
		KarmaPercentage:      envFloat("KARMA_PERCENTAGE", 0.0),
		KarmaTreasuryAddress: os.Getenv("KARMA_TREASURY_ADDRESS"),
		ExecutionMode:        envOr("EXECUTION_MODE", "paper"),

		OTLPEndpoint: envOr("OTLP_ENDPOINT", "localhost:4317"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Calibrator/internal/database"
	"github.com/Alias1177/Calibrator/models"
)

// Effectiveness source kinds
const (
	SourceNone     = "none"
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceRedis    = "redis"
	SourceHTTP     = "http"
)

// Config holds all application configuration
type Config struct {
	LogLevel   string
	LogFile    string
	TuningFile string

	Symbols   []string
	WindowDir string
	Direction models.Direction
	Account   models.AccountSnapshot
	Base      models.BaseParams
	TickSize  float64
	StepSize  float64

	// Watch recomputes every interval until interrupted; zero runs once
	Watch time.Duration

	EffectivenessSource string
	EffectivenessFile   string
	EffectivenessURL    string
	EffectivenessToken  string
	RefreshInterval     time.Duration
	Postgres            database.ConnectionParams
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	RedisKey            string
	HTTPRequestsPerSec  int
	HTTPTimeout         time.Duration
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.TuningFile = os.Getenv("TUNING_FILE")

	cfg.Symbols = getEnvListWithDefault("SYMBOLS", []string{"BTCUSDT"})
	cfg.WindowDir = getEnvWithDefault("WINDOW_DIR", "data")
	cfg.Direction = models.Direction(strings.ToUpper(getEnvWithDefault("DIRECTION", string(models.Long))))
	// An account with no open positions has all of its deposit free
	deposit := getEnvFloatWithDefault("DEPOSIT", 1000)
	cfg.Account = models.AccountSnapshot{
		Deposit:       deposit,
		FreeDeposit:   getEnvFloatWithDefault("FREE_DEPOSIT", deposit),
		TotalProfit:   getEnvFloatWithDefault("TOTAL_PROFIT", 0),
		TradeMode:     models.TradeMode(strings.ToLower(getEnvWithDefault("TRADE_MODE", string(models.Spot)))),
		OpenPositions: getEnvIntWithDefault("OPEN_POSITIONS", 0),
	}
	cfg.Base = models.BaseParams{
		RiskPct:  getEnvFloatWithDefault("BASE_RISK_PCT", 2),
		Leverage: getEnvFloatWithDefault("BASE_LEVERAGE", 5),
		TP1Pct:   getEnvFloatWithDefault("BASE_TP1_PCT", 2),
		TP2Pct:   getEnvFloatWithDefault("BASE_TP2_PCT", 4),
		SLPct:    getEnvFloatWithDefault("BASE_SL_PCT", 2),
	}
	cfg.TickSize = getEnvFloatWithDefault("TICK_SIZE", 0)
	cfg.StepSize = getEnvFloatWithDefault("STEP_SIZE", 0)
	cfg.Watch = getEnvDurationWithDefault("WATCH_INTERVAL", 0)

	cfg.EffectivenessSource = strings.ToLower(getEnvWithDefault("EFFECTIVENESS_SOURCE", SourceNone))
	cfg.EffectivenessFile = getEnvWithDefault("EFFECTIVENESS_FILE", "position_effectiveness.json")
	cfg.EffectivenessURL = os.Getenv("EFFECTIVENESS_URL")
	cfg.EffectivenessToken = os.Getenv("EFFECTIVENESS_TOKEN")
	cfg.RefreshInterval = getEnvDurationWithDefault("EFFECTIVENESS_REFRESH", 5*time.Minute)

	cfg.Postgres = database.ConnectionParams{
		Host:     getEnvWithDefault("DB_HOST", "localhost"),
		Port:     getEnvWithDefault("DB_PORT", "5432"),
		User:     getEnvWithDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   getEnvWithDefault("DB_NAME", "calibrator"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}
	cfg.RedisAddr = getEnvWithDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvIntWithDefault("REDIS_DB", 0)
	cfg.RedisKey = getEnvWithDefault("REDIS_KEY", database.DefaultRedisKey)
	cfg.HTTPRequestsPerSec = getEnvIntWithDefault("HTTP_REQUESTS_PER_SEC", 5)
	cfg.HTTPTimeout = getEnvDurationWithDefault("HTTP_TIMEOUT", 30*time.Second)

	return &cfg, nil
}

// Instrument returns the configured rounding rules
func (c *Config) Instrument() models.Instrument {
	return models.Instrument{TickSize: c.TickSize, StepSize: c.StepSize}
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvListWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

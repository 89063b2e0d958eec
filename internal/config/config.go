// Package config loads runtime settings from the environment (and .env when present).
package config

import (
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds every knob the table service reads at startup.
type Config struct {
	Env         string // "local", "dev", "prod"
	ServiceName string

	Port        string
	MetricsPort string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers     string
	TopicRolls       string
	TopicSettlements string
	TopicSeries      string

	// Table limits, in minimal units.
	BetMin       int64
	BetMax       int64
	OddsMultiple int64

	FeeBps       int64
	VaultAccount string
	FeeRecipient string

	OperatorIDs  []string
	AdminIDs     []string
	SettlementID string

	RollDelayMs      int
	RollHistoryLimit int
	MigrationsPath   string
}

// Load reads the environment, falling back to defaults suited to a local table.
func Load() Config {
	return Config{
		Env:         getEnv("ENV", "local"),
		ServiceName: getEnv("SERVICE_NAME", "craps-table"),

		Port:        getEnv("PORT", "8080"),
		MetricsPort: getEnv("METRICS_PORT", "9095"),

		RedisAddr:     getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		KafkaBrokers:     getEnv("KAFKA_BROKERS", ""),
		TopicRolls:       getEnv("KAFKA_TOPIC_ROLLS", "craps.rolls"),
		TopicSettlements: getEnv("KAFKA_TOPIC_SETTLEMENTS", "craps.settlements"),
		TopicSeries:      getEnv("KAFKA_TOPIC_SERIES", "craps.series"),

		BetMin:       getEnvAsInt64("BET_MIN", 1),
		BetMax:       getEnvAsInt64("BET_MAX", 10_000),
		OddsMultiple: getEnvAsInt64("ODDS_MULTIPLE", 5),

		FeeBps:       getEnvAsInt64("VAULT_FEE_BPS", 1000),
		VaultAccount: getEnv("VAULT_ACCOUNT", "vault"),
		FeeRecipient: getEnv("FEE_RECIPIENT", "treasury"),

		OperatorIDs:  getEnvAsList("OPERATOR_IDS", []string{"operator"}),
		AdminIDs:     getEnvAsList("ADMIN_IDS", []string{"admin"}),
		SettlementID: getEnv("SETTLEMENT_ID", "settlement"),

		RollDelayMs:      getEnvAsInt("ROLL_DELAY_MS", 0),
		RollHistoryLimit: getEnvAsInt("ROLL_HISTORY_LIMIT", 100),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "./migrations"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

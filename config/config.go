package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all app configuration
type Config struct {
	// Server
	HTTPPort string

	// Steam account / API
	SteamAccount        string
	SteamPassword       string
	SteamID             string
	SteamSessionID      string
	SteamDeviceID       string
	SteamSharedSecret   string
	SteamIdentitySecret string
	SteamAPIKey         string
	SteamAppID          int
	SteamContextID      int
	SteamLanguage       string
	SteamCurrency       int

	// Postgres (catalog)
	PostgresDSN string

	// Redis (price snapshot mirror)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ClickHouse (trade archive)
	ClickhouseAddr     string
	ClickhouseUsername string
	ClickhousePassword string
	ClickhouseTimeout  int

	// Kafka (domain event export)
	KafkaBrokers []string
	KafkaTopic   string

	// Loop periods
	OfferPollInterval    time.Duration
	BulkRefreshInterval  time.Duration
	InventoryInterval    time.Duration
	ConfirmationInterval time.Duration
	DetailSleepMin       time.Duration
	DetailSleepJitter    time.Duration

	// Unresolved confirmation poll cycles before a stuck alert is raised
	ConfirmationStuckCycles int

	// App settings
	EventBufferSize int
	Debug           bool
}

// LoadConfig loads configuration from environment variables, with optional .env file
func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := &Config{
		// Server
		HTTPPort: getEnv("HTTP_PORT", "8888"),

		// Steam
		SteamAccount:        getEnv("STEAM_ACCOUNT", ""),
		SteamPassword:       getEnv("STEAM_PASSWORD", ""),
		SteamID:             getEnv("STEAM_ID", ""),
		SteamSessionID:      getEnv("STEAM_SESSION_ID", ""),
		SteamDeviceID:       getEnv("STEAM_DEVICE_ID", ""),
		SteamSharedSecret:   getEnv("STEAM_SHARED_SECRET", ""),
		SteamIdentitySecret: getEnv("STEAM_IDENTITY_SECRET", ""),
		SteamAPIKey:         getEnv("STEAM_API_KEY", ""),
		SteamAppID:          getEnvAsInt("STEAM_APP_ID", 730),
		SteamContextID:      getEnvAsInt("STEAM_CONTEXT_ID", 2),
		SteamLanguage:       getEnv("STEAM_LANGUAGE", "russian"),
		SteamCurrency:       getEnvAsInt("STEAM_CURRENCY", 5),

		// Postgres
		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/steambot?sslmode=disable"),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// ClickHouse
		ClickhouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickhouseUsername: getEnv("CLICKHOUSE_USERNAME", ""),
		ClickhousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		ClickhouseTimeout:  getEnvAsInt("CLICKHOUSE_TIMEOUT", 10),

		// Kafka
		KafkaBrokers: getEnvAsSlice("KAFKA_BROKERS", nil, ","),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "steambot-events"),

		// Loop periods
		OfferPollInterval:    getEnvAsDuration("OFFER_POLL_INTERVAL", 10*time.Second),
		BulkRefreshInterval:  getEnvAsDuration("BULK_REFRESH_INTERVAL", 60*time.Second),
		InventoryInterval:    getEnvAsDuration("INVENTORY_INTERVAL", 60*time.Second),
		ConfirmationInterval: getEnvAsDuration("CONFIRMATION_INTERVAL", 20*time.Second),
		DetailSleepMin:       getEnvAsDuration("DETAIL_SLEEP_MIN", 7500*time.Millisecond),
		DetailSleepJitter:    getEnvAsDuration("DETAIL_SLEEP_JITTER", 5000*time.Millisecond),

		ConfirmationStuckCycles: getEnvAsInt("CONFIRMATION_STUCK_CYCLES", 15),

		// App settings
		EventBufferSize: getEnvAsInt("EVENT_BUFFER_SIZE", 1024),
		Debug:           getEnvAsBool("DEBUG", false),
	}

	return cfg
}

// Helper functions for parsing environment variables
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := getEnv(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valStr := getEnv(key, "")
	if val, err := time.ParseDuration(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	return strings.Split(valStr, sep)
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64

	// Session store
	SessionBackend        string // "file" or "postgres"
	SessionDataDir        string
	SessionBackupInterval time.Duration

	// Content store (Lighthouse-compatible API)
	ContentStoreBaseURL string
	ContentStoreAPIKey  string
	ContentStoreGateway string
	ContentStoreTimeout time.Duration
	ContentStorePin     bool

	// Ledger relay
	LedgerBaseURL        string
	LedgerAPIKey         string
	LedgerNetwork        string
	LedgerRequestTimeout time.Duration
	LedgerConfirmTimeout time.Duration
	ExplorerBaseURL      string
	NFTContract          string
	RegistryContract     string
	MintQueueSize        int

	// Scoring
	ScoringRulesPath string

	// Dedupe
	DedupeEnabled bool
	DedupeTTL     time.Duration

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	UploadEventsTopic string

	// Rate limiting
	RateLimitRPS   int
	RateLimitBurst int
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 10*1024*1024)),

		SessionBackend:        getEnv("SESSION_BACKEND", "file"),
		SessionDataDir:        getEnv("SESSION_DATA_DIR", "./data"),
		SessionBackupInterval: getDuration("SESSION_BACKUP_INTERVAL", 6*time.Hour),

		ContentStoreBaseURL: getEnv("CONTENTSTORE_BASE_URL", "https://api.lighthouse.storage"),
		ContentStoreAPIKey:  getEnv("CONTENTSTORE_API_KEY", ""),
		ContentStoreGateway: getEnv("CONTENTSTORE_GATEWAY", "https://gateway.lighthouse.storage"),
		ContentStoreTimeout: getDuration("CONTENTSTORE_TIMEOUT", 30*time.Second),
		ContentStorePin:     getBoolEnv("CONTENTSTORE_PIN", true),

		LedgerBaseURL:        getEnv("LEDGER_BASE_URL", "http://localhost:8545"),
		LedgerAPIKey:         getEnv("LEDGER_API_KEY", ""),
		LedgerNetwork:        getEnv("LEDGER_NETWORK", "sepolia"),
		LedgerRequestTimeout: getDuration("LEDGER_REQUEST_TIMEOUT", 15*time.Second),
		LedgerConfirmTimeout: getDuration("LEDGER_CONFIRM_TIMEOUT", 90*time.Second),
		ExplorerBaseURL:      getEnv("EXPLORER_BASE_URL", "https://sepolia.blockscout.com"),
		NFTContract:          getEnv("NFT_CONTRACT", ""),
		RegistryContract:     getEnv("REGISTRY_CONTRACT", ""),
		MintQueueSize:        getIntEnv("MINT_QUEUE_SIZE", 16),

		ScoringRulesPath: getEnv("SCORING_RULES_PATH", ""),

		DedupeEnabled: getBoolEnv("DEDUPE_ENABLED", true),
		DedupeTTL:     getDuration("DEDUPE_TTL", 24*time.Hour),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "ecochain"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "ecochain123"),
		PostgresDB:       getEnv("POSTGRES_DB", "ecochain"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "ecochain-platform"),
		UploadEventsTopic: getEnv("UPLOAD_EVENTS_TOPIC", "upload-events"),

		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

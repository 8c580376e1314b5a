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
	MaxRequestBody int64

	// Planning backend
	PlannerBaseURL        string
	PlannerRequestTimeout time.Duration
	PlannerRetryAttempts  int
	PlannerTokenURL       string
	PlannerClientID       string
	PlannerClientSecret   string

	// Health checks
	HealthProbeTimeout  time.Duration
	HealthCycleTimeout  time.Duration
	HealthCheckSchedule string
	DependencyCatalog   string

	// Database
	PostgresHost       string
	PostgresPort       string
	PostgresUser       string
	PostgresPassword   string
	PostgresDB         string
	PostgresSSLMode    string
	PlanHistoryEnabled bool

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisEnabled  bool

	// Kafka
	KafkaBrokers     []string
	KafkaGroupID     string
	KafkaPlanTopic   string
	KafkaHealthTopic string
	KafkaEnabled     bool

	// Gateway specific
	GatewayRateLimitRPS   int
	GatewayRateLimitBurst int
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8250"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 45*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1*1024*1024)),

		PlannerBaseURL:        strings.TrimRight(getEnv("PLANNER_BASE_URL", "http://localhost:8240"), "/"),
		PlannerRequestTimeout: getDuration("PLANNER_REQUEST_TIMEOUT", 30*time.Second),
		PlannerRetryAttempts:  getIntEnv("PLANNER_RETRY_ATTEMPTS", 1),
		PlannerTokenURL:       getEnv("PLANNER_OAUTH_TOKEN_URL", ""),
		PlannerClientID:       getEnv("PLANNER_OAUTH_CLIENT_ID", ""),
		PlannerClientSecret:   getEnv("PLANNER_OAUTH_CLIENT_SECRET", ""),

		HealthProbeTimeout:  getDuration("HEALTH_PROBE_TIMEOUT", 5*time.Second),
		HealthCycleTimeout:  getDuration("HEALTH_CYCLE_TIMEOUT", 8*time.Second),
		HealthCheckSchedule: getEnv("HEALTH_CHECK_SCHEDULE", ""),
		DependencyCatalog:   getEnv("DEPENDENCY_CATALOG", ""),

		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:       getEnv("POSTGRES_USER", "synaptica"),
		PostgresPassword:   getEnv("POSTGRES_PASSWORD", "synaptica123"),
		PostgresDB:         getEnv("POSTGRES_DB", "rwe_planner"),
		PostgresSSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
		PlanHistoryEnabled: getBoolEnv("PLAN_HISTORY_ENABLED", false),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),

		KafkaBrokers:     getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "rwe-planner"),
		KafkaPlanTopic:   getEnv("KAFKA_PLAN_TOPIC", "rwe.plans"),
		KafkaHealthTopic: getEnv("KAFKA_HEALTH_TOPIC", "rwe.health"),
		KafkaEnabled:     getBoolEnv("KAFKA_ENABLED", false),

		GatewayRateLimitRPS:   getIntEnv("GATEWAY_RATE_LIMIT_RPS", 50),
		GatewayRateLimitBurst: getIntEnv("GATEWAY_RATE_LIMIT_BURST", 100),
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

// getStringSliceEnv splits a comma separated list, dropping empty entries.
func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

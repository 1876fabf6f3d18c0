package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Postgres
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Ingest worker pool
	ShardCount     int
	ShardQueueSize int

	// Event writer tuning
	WriteBatchSize       int
	WriteFlushIntervalMS int

	// Normalizer
	ClockSkewToleranceSeconds int

	// Trip detection
	MovingSpeedKmh         float64
	MovingStreakSamples    int
	MovingStreakWindowSec  int
	IdleStreakSamples      int
	IdleStreakWindowSec    int
	MinTripDurationSeconds int

	// Alerts
	OverspeedLimitKmh        float64
	OverspeedDebounceSeconds int
	IdleAlertWindowSeconds   int
	IdleJitterMeters         float64
	OfflineThresholdSeconds  int
	LivenessIntervalSeconds  int

	// Geofence assignment refresh
	AssignmentRefreshSeconds int

	// Fan-out
	SubscriberBufferSize int

	// Auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string
}

func Load() *Config {
	return &Config{
		HTTPPort:             getEnv("HTTP_PORT", "8001"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "fleet_user"),
		DBPassword:           getEnv("DB_PASSWORD", "fleet_password"),
		DBName:               getEnv("DB_NAME", "fleet_monitor"),
		DBMaxConns:           int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		ShardCount:           getEnvInt("SHARD_COUNT", 16),
		ShardQueueSize:       getEnvInt("SHARD_QUEUE_SIZE", 4096),
		WriteBatchSize:       getEnvInt("WRITE_BATCH_SIZE", 500),
		WriteFlushIntervalMS: getEnvInt("WRITE_FLUSH_INTERVAL_MS", 100),

		ClockSkewToleranceSeconds: getEnvInt("CLOCK_SKEW_TOLERANCE_SECONDS", 30),

		MovingSpeedKmh:         getEnvFloat("MOVING_SPEED_KMH", 3.0),
		MovingStreakSamples:    getEnvInt("MOVING_STREAK_SAMPLES", 3),
		MovingStreakWindowSec:  getEnvInt("MOVING_STREAK_WINDOW_SECONDS", 30),
		IdleStreakSamples:      getEnvInt("IDLE_STREAK_SAMPLES", 4),
		IdleStreakWindowSec:    getEnvInt("IDLE_STREAK_WINDOW_SECONDS", 120),
		MinTripDurationSeconds: getEnvInt("MIN_TRIP_DURATION_SECONDS", 60),

		OverspeedLimitKmh:        getEnvFloat("OVERSPEED_LIMIT_KMH", 100.0),
		OverspeedDebounceSeconds: getEnvInt("OVERSPEED_DEBOUNCE_SECONDS", 300),
		IdleAlertWindowSeconds:   getEnvInt("IDLE_ALERT_WINDOW_SECONDS", 600),
		IdleJitterMeters:         getEnvFloat("IDLE_JITTER_METERS", 25.0),
		OfflineThresholdSeconds:  getEnvInt("OFFLINE_THRESHOLD_SECONDS", 300),
		LivenessIntervalSeconds:  getEnvInt("LIVENESS_INTERVAL_SECONDS", 30),

		AssignmentRefreshSeconds: getEnvInt("ASSIGNMENT_REFRESH_SECONDS", 60),

		SubscriberBufferSize: getEnvInt("SUBSCRIBER_BUFFER_SIZE", 256),

		AuthCacheTTLSeconds: getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:        strings.Split(getEnv("VALID_API_KEYS", ""), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

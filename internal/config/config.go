package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string

	RedisAddr     string
	ClickHouseDSN string
	PostgresDSN   string
	GeoIPDB       string

	// Auction engine
	AuctionTimeout time.Duration
	BidIncrement   float64
	BaseCurrency   string

	// Circuit breaker
	BreakerThreshold    int
	BreakerResetTimeout time.Duration

	// Waterfall cascade
	WaterfallEnabled      bool
	WaterfallMaxAttempts  int
	WaterfallInitialDelay time.Duration
	WaterfallMaxDelay     time.Duration
	WaterfallMultiplier   float64
	WaterfallSmart        bool

	// Floor optimizer
	FloorCandidates      []float64
	FloorExplorationRate float64
	FloorWarmupTrials    int

	// Landscape logger
	LandscapeQueueSize     int
	LandscapeWorkers       int
	LandscapeBatchSize     int
	LandscapeFlushInterval time.Duration
	LandscapeMaxRetries    int

	// Adapter/waterfall configuration reload
	ReloadInterval time.Duration

	// Database connection pooling
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// ClickHouse connection pooling
	CHMaxOpenConns int
	CHMaxIdleConns int

	// Tracing
	TracingEnabled    bool
	TracingEndpoint   string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8686")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "auctioncore")

	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "clickhouse://default:@localhost:9000/default?async_insert=1&wait_for_async_insert=1")
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "postgres://postgres@127.0.0.1:5432/postgres?sslmode=disable")
	cfg.GeoIPDB = getenv("GEOIP_DB", "internal/geoip/testdata/GeoLite2-Country.mmdb")

	cfg.AuctionTimeout = envDuration("AUCTION_TIMEOUT", 120*time.Millisecond)
	cfg.BidIncrement = envFloat("BID_INCREMENT", 0.01)
	cfg.BaseCurrency = getenv("BASE_CURRENCY", "USD")

	cfg.BreakerThreshold = envInt("BREAKER_THRESHOLD", 5)
	cfg.BreakerResetTimeout = envDuration("BREAKER_RESET_TIMEOUT", 60*time.Second)

	cfg.WaterfallEnabled = envBool("WATERFALL_ENABLED", true)
	cfg.WaterfallMaxAttempts = envInt("WATERFALL_MAX_ATTEMPTS", 5)
	cfg.WaterfallInitialDelay = envDuration("WATERFALL_INITIAL_DELAY", 50*time.Millisecond)
	cfg.WaterfallMaxDelay = envDuration("WATERFALL_MAX_DELAY", 500*time.Millisecond)
	cfg.WaterfallMultiplier = envFloat("WATERFALL_MULTIPLIER", 2.0)
	cfg.WaterfallSmart = envBool("WATERFALL_SMART", false)

	cfg.FloorCandidates = envFloats("FLOOR_CANDIDATES", []float64{0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0, 10.0})
	cfg.FloorExplorationRate = envFloat("FLOOR_EXPLORATION_RATE", 0.10)
	cfg.FloorWarmupTrials = envInt("FLOOR_WARMUP_TRIALS", 100)

	cfg.LandscapeQueueSize = envInt("LANDSCAPE_QUEUE_SIZE", 4096)
	cfg.LandscapeWorkers = envInt("LANDSCAPE_WORKERS", 2)
	cfg.LandscapeBatchSize = envInt("LANDSCAPE_BATCH_SIZE", 256)
	cfg.LandscapeFlushInterval = envDuration("LANDSCAPE_FLUSH_INTERVAL", 2*time.Second)
	cfg.LandscapeMaxRetries = envInt("LANDSCAPE_MAX_RETRIES", 3)

	// default to 30 seconds between automatic reloads
	cfg.ReloadInterval = envDuration("RELOAD_INTERVAL", 30*time.Second)

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)

	// ClickHouse defaults are higher than Postgres due to async insert
	// patterns and event volume
	cfg.CHMaxOpenConns = envInt("CH_MAX_OPEN_CONNS", 100)
	cfg.CHMaxIdleConns = envInt("CH_MAX_IDLE_CONNS", 25)

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TracingEndpoint = getenv("TRACING_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envInt parses an environment variable into an int, returning def when the
// variable is unset or invalid.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

// envFloat parses an environment variable into a float64, returning def when
// the variable is unset or invalid.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

// envBool parses an environment variable into a bool, returning def when the
// variable is unset or invalid.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envFloats parses a comma-separated list of floats. Invalid entries are
// skipped; an empty result falls back to def.
func envFloats(key string, def []float64) []float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []float64
	for _, part := range strings.Split(v, ",") {
		if f, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

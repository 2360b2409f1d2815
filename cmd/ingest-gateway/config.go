package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	rateBackendMemory      = "memory"
	rateBackendRedis       = "redis"
	rateBackendTokenBucket = "token-bucket"

	driverMemory = "memory"
)

type config struct {
	listenAddr string
	appEnv     string
	logLevel   string
	logFormat  string

	dbDriver       string
	dbDSN          string
	dbAutoMigrate  bool
	dbMaxOpenConns int

	apiKey       string
	apiKeyBcrypt string

	rateEnabled     bool
	rateBackend     string
	rateLimit       int
	rateWindow      time.Duration
	trustXFF        bool
	addHeaders      bool
	rateIdleTTL     time.Duration
	rateRedisPrefix string

	redisAddr     string
	redisPassword string
	redisDB       int

	rateStatsBackend   string
	rateStatsPrefix    string
	rateStatsTTL       time.Duration
	rateStatsTrackKeys bool

	concurrencyMax     int
	concurrencyTimeout time.Duration
	maxBodyBytes       int64
	corsOrigins        []string

	serialAttempts  int
	serialBaseDelay time.Duration
}

func (c config) production() bool {
	return strings.EqualFold(c.appEnv, "production")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("db_driver", "mysql")
	v.SetDefault("db_auto_migrate", false)
	v.SetDefault("db_max_open_conns", 25)

	v.SetDefault("rate_enabled", true)
	v.SetDefault("rate_backend", rateBackendMemory)
	v.SetDefault("rate_limit_requests", 100)
	v.SetDefault("rate_limit_window", 60*time.Second)
	v.SetDefault("trust_xff", true)
	v.SetDefault("add_ratelimit_headers", true)
	v.SetDefault("rate_idle_ttl", 15*time.Minute)
	v.SetDefault("rate_redis_prefix", "ratelimit:window")
	v.SetDefault("redis_db", 0)

	v.SetDefault("rate_stats_prefix", "ratelimit:stats")
	v.SetDefault("rate_stats_ttl", 24*time.Hour)
	v.SetDefault("rate_stats_track_keys", false)

	v.SetDefault("concurrency_max", 100)
	v.SetDefault("concurrency_timeout", 0)
	v.SetDefault("max_body_bytes", 1<<20)

	v.SetDefault("serial_retry_attempts", 3)
	v.SetDefault("serial_retry_base_delay", 50*time.Millisecond)
}

// readConfig lê as variáveis de ambiente (LISTEN_ADDR, RATE_LIMIT_REQUESTS...)
// pelo viper e valida as combinações.
func readConfig(v *viper.Viper) (config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := config{
		listenAddr: v.GetString("listen_addr"),
		appEnv:     v.GetString("app_env"),
		logLevel:   v.GetString("log_level"),
		logFormat:  v.GetString("log_format"),

		dbDriver:       strings.ToLower(strings.TrimSpace(v.GetString("db_driver"))),
		dbDSN:          v.GetString("db_dsn"),
		dbAutoMigrate:  v.GetBool("db_auto_migrate"),
		dbMaxOpenConns: v.GetInt("db_max_open_conns"),

		apiKey:       v.GetString("api_key"),
		apiKeyBcrypt: v.GetString("api_key_bcrypt"),

		rateEnabled:     v.GetBool("rate_enabled"),
		rateBackend:     strings.ToLower(strings.TrimSpace(v.GetString("rate_backend"))),
		rateLimit:       v.GetInt("rate_limit_requests"),
		rateWindow:      v.GetDuration("rate_limit_window"),
		trustXFF:        v.GetBool("trust_xff"),
		addHeaders:      v.GetBool("add_ratelimit_headers"),
		rateIdleTTL:     v.GetDuration("rate_idle_ttl"),
		rateRedisPrefix: v.GetString("rate_redis_prefix"),

		redisAddr:     v.GetString("redis_addr"),
		redisPassword: v.GetString("redis_password"),
		redisDB:       v.GetInt("redis_db"),

		rateStatsBackend:   strings.ToLower(strings.TrimSpace(v.GetString("rate_stats_backend"))),
		rateStatsPrefix:    v.GetString("rate_stats_prefix"),
		rateStatsTTL:       v.GetDuration("rate_stats_ttl"),
		rateStatsTrackKeys: v.GetBool("rate_stats_track_keys"),

		concurrencyMax:     v.GetInt("concurrency_max"),
		concurrencyTimeout: v.GetDuration("concurrency_timeout"),
		maxBodyBytes:       v.GetInt64("max_body_bytes"),
		corsOrigins:        splitList(v.GetString("cors_allowed_origins")),

		serialAttempts:  v.GetInt("serial_retry_attempts"),
		serialBaseDelay: v.GetDuration("serial_retry_base_delay"),
	}

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	if !slices.Contains([]string{"mysql", "pgx", "postgres", driverMemory}, c.dbDriver) {
		return fmt.Errorf("DB_DRIVER %q is not supported (mysql, pgx, postgres, memory)", c.dbDriver)
	}
	if c.dbDriver != driverMemory && strings.TrimSpace(c.dbDSN) == "" {
		return errors.New("DB_DSN is required")
	}
	if c.apiKey != "" && c.apiKeyBcrypt != "" {
		return errors.New("set only one of API_KEY and API_KEY_BCRYPT")
	}

	if c.rateLimit <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.rateWindow <= 0 {
		return errors.New("RATE_LIMIT_WINDOW must be > 0")
	}
	switch c.rateBackend {
	case rateBackendMemory, rateBackendTokenBucket:
	case rateBackendRedis:
		if strings.TrimSpace(c.redisAddr) == "" {
			return errors.New("REDIS_ADDR is required when RATE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_BACKEND %q is not supported (memory, redis, token-bucket)", c.rateBackend)
	}

	switch c.rateStatsBackend {
	case "", rateBackendMemory:
	case rateBackendRedis:
		if strings.TrimSpace(c.redisAddr) == "" {
			return errors.New("REDIS_ADDR is required when RATE_STATS_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_STATS_BACKEND %q is not supported (memory, redis)", c.rateStatsBackend)
	}

	if c.concurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.maxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be > 0")
	}
	if c.serialAttempts < 1 {
		return errors.New("SERIAL_RETRY_ATTEMPTS must be >= 1")
	}
	return nil
}

func (c config) needsRedis() bool {
	return c.rateBackend == rateBackendRedis || c.rateStatsBackend == rateBackendRedis
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

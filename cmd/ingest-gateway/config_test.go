package main

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/spf13/viper"
)

func TestReadConfig_Defaults(t *testing.T) {
	c := qt.New(t)
	t.Setenv("DB_DRIVER", "memory")

	cfg, err := readConfig(viper.New())
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.listenAddr, qt.Equals, ":8080")
	c.Assert(cfg.rateEnabled, qt.IsTrue)
	c.Assert(cfg.rateBackend, qt.Equals, rateBackendMemory)
	c.Assert(cfg.rateLimit, qt.Equals, 100)
	c.Assert(cfg.rateWindow, qt.Equals, 60*time.Second)
	c.Assert(cfg.trustXFF, qt.IsTrue)
	c.Assert(cfg.concurrencyMax, qt.Equals, 100)
	c.Assert(cfg.maxBodyBytes, qt.Equals, int64(1<<20))
	c.Assert(cfg.serialAttempts, qt.Equals, 3)
	c.Assert(cfg.serialBaseDelay, qt.Equals, 50*time.Millisecond)
	c.Assert(cfg.production(), qt.IsFalse)
}

func TestReadConfig_EnvOverrides(t *testing.T) {
	c := qt.New(t)
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("DB_DSN", "postgres://u:p@localhost/ingest")
	t.Setenv("RATE_BACKEND", "token-bucket")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "10s")
	t.Setenv("TRUST_XFF", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("APP_ENV", "Production")

	cfg, err := readConfig(viper.New())
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.dbDriver, qt.Equals, "pgx")
	c.Assert(cfg.rateBackend, qt.Equals, rateBackendTokenBucket)
	c.Assert(cfg.rateLimit, qt.Equals, 5)
	c.Assert(cfg.rateWindow, qt.Equals, 10*time.Second)
	c.Assert(cfg.trustXFF, qt.IsFalse)
	c.Assert(cfg.corsOrigins, qt.DeepEquals, []string{"https://a.example", "https://b.example"})
	c.Assert(cfg.production(), qt.IsTrue)
}

func TestReadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		err  string
	}{
		{"unknown driver", map[string]string{"DB_DRIVER": "sqlite"}, `DB_DRIVER "sqlite" is not supported.*`},
		{"missing dsn", map[string]string{"DB_DRIVER": "mysql"}, "DB_DSN is required"},
		{"zero limit", map[string]string{"RATE_LIMIT_REQUESTS": "0"}, "RATE_LIMIT_REQUESTS must be > 0"},
		{"zero window", map[string]string{"RATE_LIMIT_WINDOW": "0s"}, "RATE_LIMIT_WINDOW must be > 0"},
		{"unknown backend", map[string]string{"RATE_BACKEND": "leaky"}, `RATE_BACKEND "leaky" is not supported.*`},
		{"redis without addr", map[string]string{"RATE_BACKEND": "redis"}, "REDIS_ADDR is required when RATE_BACKEND=redis"},
		{"redis stats without addr", map[string]string{"RATE_STATS_BACKEND": "redis"}, "REDIS_ADDR is required when RATE_STATS_BACKEND=redis"},
		{"two keys", map[string]string{"API_KEY": "a", "API_KEY_BCRYPT": "b"}, "set only one of API_KEY and API_KEY_BCRYPT"},
		{"negative concurrency", map[string]string{"CONCURRENCY_MAX": "-1"}, "CONCURRENCY_MAX must be >= 0"},
		{"no attempts", map[string]string{"SERIAL_RETRY_ATTEMPTS": "0"}, "SERIAL_RETRY_ATTEMPTS must be >= 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			t.Setenv("DB_DRIVER", "memory")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := readConfig(viper.New())
			c.Assert(err, qt.ErrorMatches, tt.err)
		})
	}
}

func TestSplitList(t *testing.T) {
	c := qt.New(t)
	c.Assert(splitList(""), qt.IsNil)
	c.Assert(splitList(" a ,, b"), qt.DeepEquals, []string{"a", "b"})
}

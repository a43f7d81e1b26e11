package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADEBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.BaseURL, "TRADEBOT_EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.WsURL, "TRADEBOT_EXCHANGE_WS_URL")
	setStr(&cfg.Exchange.ApiKey, "TRADEBOT_EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.ApiSecret, "TRADEBOT_EXCHANGE_API_SECRET")
	setStr(&cfg.Exchange.EncryptedCredentialsPath, "TRADEBOT_EXCHANGE_ENCRYPTED_CREDENTIALS_PATH")
	setStr(&cfg.Exchange.CredentialsPassword, "TRADEBOT_EXCHANGE_CREDENTIALS_PASSWORD")

	// ── Database ──
	setStr(&cfg.Database.DSN, "TRADEBOT_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "TRADEBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "TRADEBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "TRADEBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "TRADEBOT_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "TRADEBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "TRADEBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "TRADEBOT_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "TRADEBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "TRADEBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "TRADEBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRADEBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRADEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADEBOT_REDIS_TLS_ENABLED")

	// ── Engine ──
	setInt(&cfg.Engine.Lookback, "TRADEBOT_ENGINE_LOOKBACK")
	setDuration(&cfg.Engine.PollInterval, "TRADEBOT_ENGINE_POLL_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRADEBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRADEBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADEBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TRADEBOT_SERVER_API_KEY")

	// ── Snapshot ──
	setStr(&cfg.Snapshot.Path, "TRADEBOT_SNAPSHOT_PATH")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "TRADEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// Package config reads bot settings from flags, the environment and an
// optional .env file. Flags win over the environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/maaaruch/tg-awards-bot/internal/admin"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	CacheSQL   = "sql"
	CacheRedis = "redis"

	defaultDBPath      = "data/data.db"
	defaultHTTPTimeout = 15 * time.Second
)

type Config struct {
	BotToken   string
	APIBaseURL string
	AdminKey   string

	AdminUsername     string
	AdminPasswordHash string

	DBDriver string
	DBDSN    string

	CacheBackend string
	RedisURL     string

	MetricsAddr string
	Debug       bool
	HTTPTimeout time.Duration
	LinkMode    admin.LinkMode
}

// AdminEnabled reports whether /admin can succeed at all.
func (c Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPasswordHash != ""
}

// Load reads envFiles (".env" when none given; missing files are skipped)
// into the process environment and then parses args.
func Load(args []string, envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return Parse(args, os.Getenv)
}

// Parse builds a Config from flags with getenv as the fallback.
func Parse(args []string, getenv func(string) string) (Config, error) {
	var (
		cfg           Config
		adminPassword string
		cacheBackend  string
		linkMode      string
		debug         string
		timeout       string
	)

	flags := flag.NewFlagSet("tg-awards-bot", flag.ContinueOnError)
	flags.StringVar(&cfg.APIBaseURL, "api", "", "Awards API base URL")
	flags.StringVar(&cfg.DBDriver, "db-driver", "", "Database driver (sqlite3 or postgres)")
	flags.StringVar(&cfg.DBDSN, "db", "", "Database DSN or SQLite path")
	flags.StringVar(&cacheBackend, "cache", "", "Winners cache backend (sql or redis)")
	flags.StringVar(&cfg.RedisURL, "redis", "", "Redis URL")
	flags.StringVar(&cfg.MetricsAddr, "metrics", "", "Listen address for /metrics")
	flags.StringVar(&linkMode, "link-mode", "", "Nominee linking (nominations or direct)")
	flags.StringVar(&debug, "debug", "", "Telegram client debug logging")
	flags.StringVar(&timeout, "http-timeout", "", "Awards API request timeout")

	// Secrets (prefer env, CLI for dev)
	flags.StringVar(&cfg.BotToken, "token", "", "Telegram bot token (prefer env)")
	flags.StringVar(&cfg.AdminKey, "admin-key", "", "Awards API admin key (prefer env)")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	orEnv := func(v *string, keys ...string) {
		for _, k := range keys {
			if *v != "" {
				return
			}
			*v = strings.TrimSpace(getenv(k))
		}
	}

	orEnv(&cfg.BotToken, "TELEGRAM_BOT_TOKEN")
	if cfg.BotToken == "" {
		return Config{}, errors.New("TELEGRAM_BOT_TOKEN required")
	}
	orEnv(&cfg.APIBaseURL, "API_BASE_URL")
	if cfg.APIBaseURL == "" {
		return Config{}, errors.New("API_BASE_URL required (use -api or API_BASE_URL env)")
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	orEnv(&cfg.AdminKey, "ADMIN_KEY")

	cfg.AdminUsername = strings.TrimSpace(getenv("ADMIN_USERNAME"))
	cfg.AdminPasswordHash = strings.TrimSpace(getenv("ADMIN_PASSWORD_HASH"))
	adminPassword = getenv("ADMIN_PASSWORD")
	if cfg.AdminUsername != "" && cfg.AdminPasswordHash == "" {
		if adminPassword == "" {
			return Config{}, errors.New("ADMIN_USERNAME set without ADMIN_PASSWORD_HASH or ADMIN_PASSWORD")
		}
		h, err := admin.HashPassword(adminPassword)
		if err != nil {
			return Config{}, fmt.Errorf("hash admin password: %w", err)
		}
		cfg.AdminPasswordHash = h
	}

	orEnv(&cfg.DBDriver, "DB_DRIVER")
	switch cfg.DBDriver {
	case "", "sqlite", DriverSQLite:
		cfg.DBDriver = DriverSQLite
		orEnv(&cfg.DBDSN, "DB_DSN", "DB_PATH")
		if cfg.DBDSN == "" {
			cfg.DBDSN = defaultDBPath
		}
	case DriverPostgres:
		orEnv(&cfg.DBDSN, "DB_DSN", "DATABASE_URL")
		if cfg.DBDSN == "" {
			return Config{}, errors.New("DB_DSN required for postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}

	orEnv(&cacheBackend, "CACHE_BACKEND")
	orEnv(&cfg.RedisURL, "REDIS_URL")
	switch cacheBackend {
	case "", CacheSQL:
		cfg.CacheBackend = CacheSQL
	case CacheRedis:
		if cfg.RedisURL == "" {
			return Config{}, errors.New("REDIS_URL required for the redis cache")
		}
		cfg.CacheBackend = CacheRedis
	default:
		return Config{}, fmt.Errorf("unknown CACHE_BACKEND %q", cacheBackend)
	}

	orEnv(&cfg.MetricsAddr, "METRICS_ADDR")

	orEnv(&linkMode, "LINK_MODE")
	mode, err := admin.ParseLinkMode(linkMode)
	if err != nil {
		return Config{}, err
	}
	cfg.LinkMode = mode

	orEnv(&debug, "BOT_DEBUG")
	if debug != "" {
		b, err := strconv.ParseBool(debug)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BOT_DEBUG %q", debug)
		}
		cfg.Debug = b
	}

	cfg.HTTPTimeout = defaultHTTPTimeout
	orEnv(&timeout, "HTTP_TIMEOUT")
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid HTTP_TIMEOUT %q", timeout)
		}
		cfg.HTTPTimeout = d
	}

	return cfg, nil
}

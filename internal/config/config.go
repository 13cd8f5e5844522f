// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token            string  `yaml:"token"`
	Mode             string  `yaml:"mode"` // polling only for now
	Username         string  `yaml:"username"`
	Workers          int     `yaml:"workers"` // polling workers
	AdminIDs         []int64 `yaml:"admin_ids"`
	CommandRateLimit int     `yaml:"command_rate_limit"` // commands per user per minute
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// BroadcastConfig tunes the admin broadcast fan-out.
type BroadcastConfig struct {
	Banner         string        `yaml:"banner"`
	SendInterval   time.Duration `yaml:"send_interval"` // pause between two send attempts
	Workers        int           `yaml:"workers"`       // 1 = strictly sequential
	MaxRetries     int           `yaml:"max_retries"`   // retries for rate-limited/transient failures
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	HistoryTimeout time.Duration `yaml:"history_timeout"`
	HistoryStore   string        `yaml:"history_store"` // postgres|memory
	SessionStore   string        `yaml:"session_store"` // memory|redis
	SessionTTL     time.Duration `yaml:"session_ttl"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"` // how long shutdown waits for running broadcasts
}

type PriceConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Retries  int           `yaml:"retries"`
}

type WebConfig struct {
	APIKey    string        `yaml:"api_key"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Price     PriceConfig     `yaml:"price"`
	Web       WebConfig       `yaml:"web"`

	Runtime RuntimeConfig `yaml:"-"`
}

const DefaultBanner = "📢 *Broadcast from Payecards*\n\n"

// LoadConfig reads the yaml file at path, overlays environment secrets
// (optionally from a .env file) and applies defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployments are allowed
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Web.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		cfg.Web.APIKey = v
	}
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		ids, err := ParseAdminIDs(v)
		if err != nil {
			return fmt.Errorf("ADMIN_IDS: %w", err)
		}
		cfg.Bot.AdminIDs = append(cfg.Bot.AdminIDs, ids...)
	}
	return nil
}

// ParseAdminIDs parses a comma separated list of telegram ids.
func ParseAdminIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.CommandRateLimit <= 0 {
		cfg.Bot.CommandRateLimit = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	b := &cfg.Broadcast
	if b.Banner == "" {
		b.Banner = DefaultBanner
	}
	if b.SendInterval <= 0 {
		b.SendInterval = 50 * time.Millisecond
	}
	if b.Workers <= 0 {
		b.Workers = 1
	}
	if b.MaxRetries < 0 {
		b.MaxRetries = 0
	}
	if b.RetryBackoff <= 0 {
		b.RetryBackoff = 500 * time.Millisecond
	}
	if b.HistoryTimeout <= 0 {
		b.HistoryTimeout = 5 * time.Second
	}
	if b.HistoryStore == "" {
		b.HistoryStore = "postgres"
	}
	if b.SessionStore == "" {
		b.SessionStore = "memory"
	}
	if b.SessionTTL <= 0 {
		b.SessionTTL = 15 * time.Minute
	}
	if b.DrainTimeout <= 0 {
		b.DrainTimeout = 5 * time.Minute
	}

	if cfg.Price.BaseURL == "" {
		cfg.Price.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.Price.Timeout <= 0 {
		cfg.Price.Timeout = 10 * time.Second
	}
	if cfg.Price.CacheTTL <= 0 {
		cfg.Price.CacheTTL = time.Minute
	}
	if cfg.Price.Retries <= 0 {
		cfg.Price.Retries = 3
	}

	if cfg.Web.TokenTTL <= 0 {
		cfg.Web.TokenTTL = 30 * time.Minute
	}
}

// Validate performs minimal validation. Dev mode may run without a bot token
// (dry-run transport).
func (c *Config) Validate() error {
	if c.Bot.Token == "" && !c.Runtime.Dev {
		return errors.New("bot.token is required")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	switch c.Broadcast.HistoryStore {
	case "postgres", "memory":
	default:
		return fmt.Errorf("broadcast.history_store: unknown value %q", c.Broadcast.HistoryStore)
	}
	switch c.Broadcast.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("broadcast.session_store: unknown value %q", c.Broadcast.SessionStore)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

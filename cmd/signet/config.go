package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/block-0x/signet/pkg/log"
)

const configDirPathEnv = "SIGNET_CONFIG_DIR"

// Cache backends for the cached provider choice.
const (
	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
	CacheRedis    = "redis"
)

// Event publisher backends.
const (
	EventsNone      = "none"
	EventsGoChannel = "gochannel"
	EventsRedis     = "redis"
)

// Trace exporters. The console exporter writes spans to stderr.
const (
	TraceNone    = "none"
	TraceConsole = "console"
)

// Config is read from SIGNET_* environment variables, optionally seeded from
// a .env file in the config directory.
type Config struct {
	Log log.Config

	// WalletKeys are comma separated private keys of the built-in wallet.
	// A throwaway key is generated when empty.
	WalletKeys    string `env:"SIGNET_WALLET_KEYS"`
	WalletChainID uint64 `env:"SIGNET_WALLET_CHAIN_ID" env-default:"1"`
	// BridgeURL enables the "walletconnect" option, a websocket wallet bridge.
	BridgeURL string `env:"SIGNET_BRIDGE_URL"`

	CacheProvider bool   `env:"SIGNET_CACHE_PROVIDER" env-default:"true"`
	CacheBackend  string `env:"SIGNET_CACHE_BACKEND" env-default:"sqlite"`
	CacheDSN      string `env:"SIGNET_CACHE_DSN"`
	Profile       string `env:"SIGNET_PROFILE" env-default:"default"`

	RedisURL string `env:"SIGNET_REDIS_URL" env-default:"redis://localhost:6379/0"`
	Events   string `env:"SIGNET_EVENTS" env-default:"gochannel"`

	TraceExporter string `env:"SIGNET_TRACE_EXPORTER" env-default:"none"`

	HTTPAddr     string `env:"SIGNET_HTTP_ADDR" env-default:":8080"`
	BridgeAddr   string `env:"SIGNET_BRIDGE_ADDR" env-default:":8546"`
	NetworksPath string `env:"SIGNET_NETWORKS_PATH"`

	ConfigDir string `env:"-"`
}

// LoadConfig loads .env from the config directory, then reads the environment.
func LoadConfig() (*Config, error) {
	configDir, err := configDirPath()
	if err != nil {
		return nil, err
	}

	// A missing .env is fine; the environment alone is enough.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	cfg.ConfigDir = configDir

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configDirPath() (string, error) {
	if dir := os.Getenv(configDirPathEnv); dir != "" {
		return dir, nil
	}
	userConfDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(userConfDir, "signet"), nil
}

func (c *Config) validate() error {
	switch c.CacheBackend {
	case CacheMemory, CacheSQLite, CachePostgres, CacheRedis:
	default:
		return fmt.Errorf("invalid SIGNET_CACHE_BACKEND value: %s", c.CacheBackend)
	}
	if c.CacheBackend == CachePostgres && c.CacheDSN == "" {
		return fmt.Errorf("SIGNET_CACHE_DSN is required for the postgres cache")
	}

	switch c.Events {
	case EventsNone, EventsGoChannel, EventsRedis:
	default:
		return fmt.Errorf("invalid SIGNET_EVENTS value: %s", c.Events)
	}

	switch c.TraceExporter {
	case TraceNone, TraceConsole:
	default:
		return fmt.Errorf("invalid SIGNET_TRACE_EXPORTER value: %s", c.TraceExporter)
	}
	return nil
}

// walletKeys splits WalletKeys, dropping blanks.
func (c *Config) walletKeys() []string {
	var keys []string
	for _, k := range strings.Split(c.WalletKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// cacheDSN returns the configured DSN, defaulting the sqlite file to the
// config directory.
func (c *Config) cacheDSN() string {
	if c.CacheDSN == "" && c.CacheBackend == CacheSQLite {
		return filepath.Join(c.ConfigDir, "signet.db")
	}
	return c.CacheDSN
}

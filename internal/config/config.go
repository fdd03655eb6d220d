// Package config loads the runtime configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// CHATFLOW_* environment variables (a .env file is loaded first when present).
// Keys are dotted paths such as store.driver, which map to CHATFLOW_STORE_DRIVER.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "CHATFLOW_"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full runtime configuration.
type Config struct {
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Cursor   CursorConfig   `mapstructure:"cursor" yaml:"cursor"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp" yaml:"whatsapp"`
}

// StoreConfig selects and configures the flow repository.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"`
	Dir           string `mapstructure:"dir" yaml:"dir"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
	// DSN is the sqlite file path or the postgres connection string.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type CursorConfig struct {
	// Secret signs cursor tokens. Empty disables signing.
	Secret string `mapstructure:"secret" yaml:"secret"`
}

type WhatsAppConfig struct {
	Template string `mapstructure:"template" yaml:"template"`
}

// keys lists every dotted key that can be set from the environment.
var keys = []string{
	"store.driver",
	"store.dir",
	"store.redis_addr",
	"store.redis_password",
	"store.redis_db",
	"store.redis_prefix",
	"store.dsn",
	"http.port",
	"log.level",
	"cursor.secret",
	"whatsapp.template",
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Driver:      DriverFile,
			Dir:         ".chatflow/flows",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "chatflow:",
			DSN:         "chatflow.db",
		},
		HTTP:     HTTPConfig{Port: "8080"},
		Log:      LogConfig{Level: "info"},
		WhatsApp: WhatsAppConfig{Template: "{{text}}"},
	}
}

// Options controls where Load looks.
type Options struct {
	// File is a YAML config file. Missing files are an error only when set explicitly.
	File string
	// EnvFile is a dotenv file. Defaults to ".env"; a missing file is ignored.
	EnvFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds the configuration from defaults, file and environment.
func Load(opts Options) (*Config, error) {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}

	// godotenv never overrides variables already set.
	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", opts.EnvFile, err)
	}

	raw := map[string]any{}
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.File, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	for _, key := range keys {
		if v, ok := opts.LookupEnv(EnvName(key)); ok {
			set(raw, key, v)
		}
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverRedis, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverPostgres && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for postgres")
	}
	return nil
}

// EnvName maps a dotted key to its environment variable.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func set(m map[string]any, key string, value string) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

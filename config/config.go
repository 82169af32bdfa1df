// Package config loads the server configuration.
//
// Values are layered, later layers overriding earlier ones:
//
//  1. Defaults
//  2. An optional YAML file
//  3. A .env file, loaded into the process environment without replacing
//     variables that are already set
//  4. HTTPRPC_* environment variables
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HTTPRPC_"

// Config is the server configuration.
type Config struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`
	// DB is the sqlite data source of the catalog.
	DB string `yaml:"db"`
	// CookieKey is the hex-encoded principal cookie key. Empty disables
	// the principal cookie.
	CookieKey string `yaml:"cookie_key"`
	// Gzip enables response compression.
	Gzip bool `yaml:"gzip"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Pretty indents JSON responses.
	Pretty bool `yaml:"pretty"`
	// CORSOrigins lists origins allowed to call cross-origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Addr:     "localhost:8080",
		DB:       "file:catalog?mode=memory&cache=shared",
		Gzip:     true,
		LogLevel: "info",
	}
}

// Options locates the optional files read by Load.
type Options struct {
	// File is a YAML configuration file. Empty skips it.
	File string
	// EnvFile is a dotenv file. Empty skips it; a missing file is not an
	// error.
	EnvFile string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds a Config from the layers described in the package
// documentation and validates it.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		b, err := os.ReadFile(opts.File)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", opts.File, err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: %s: %w", opts.EnvFile, err)
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvPrefix + "ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv(EnvPrefix + "DB"); v != "" {
		c.DB = v
	}
	if v := getenv(EnvPrefix + "COOKIE_KEY"); v != "" {
		c.CookieKey = v
	}
	if v := getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvPrefix + "CORS_ORIGINS"); v != "" {
		c.CORSOrigins = nil
		for o := range strings.SplitSeq(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	}
	for name, dst := range map[string]*bool{"GZIP": &c.Gzip, "PRETTY": &c.Pretty} {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("config: addr %q: %w", c.Addr, err)
	}
	if c.DB == "" {
		return errors.New("config: db must not be empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.CookieKey != "" {
		if _, err := c.Key(); err != nil {
			return err
		}
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level %q: must be one of debug, info, warn, error", c.LogLevel)
	}
	return l, nil
}

// KeySize is the decoded length of CookieKey.
const KeySize = 32

// Key decodes CookieKey.
func (c Config) Key() ([]byte, error) {
	k, err := hex.DecodeString(c.CookieKey)
	if err != nil {
		return nil, fmt.Errorf("config: cookie_key: %w", err)
	}
	if len(k) != KeySize {
		return nil, fmt.Errorf("config: cookie_key: got %d bytes, want %d", len(k), KeySize)
	}
	return k, nil
}

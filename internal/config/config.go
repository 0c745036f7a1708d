package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server  ServerConfig
	Cache   CacheConfig
	Extract ExtractConfig
	Preview PreviewConfig
	UI      UIConfig
	Log     LogConfig
}

// ServerConfig covers both the endpoint the TUI calls and the serve command.
type ServerConfig struct {
	URL            string
	Listen         string
	MaxUploadMB    int      `mapstructure:"max_upload_mb"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      float64  `mapstructure:"rate_limit"`
	RateBurst      int      `mapstructure:"rate_burst"`
	// ExemptLoopback skips the rate limit for clients on the same host.
	ExemptLoopback bool `mapstructure:"rate_exempt_loopback"`
}

// CacheConfig holds the server-side extraction cache settings.
type CacheConfig struct {
	Enabled bool
	Path    string
}

// ExtractConfig holds extraction client settings.
type ExtractConfig struct {
	Timeout     time.Duration
	MaxInFlight int `mapstructure:"max_in_flight"`
}

// PreviewConfig holds first-page preview settings.
type PreviewConfig struct {
	MaxLines int `mapstructure:"max_lines"`
	Width    int
}

// UIConfig holds presentation settings.
type UIConfig struct {
	NameWidth int `mapstructure:"name_width"`
}

// LogConfig holds logger settings. An empty File means stderr.
type LogConfig struct {
	Level string
	File  string
}

// Load reads configuration from .env, file and env. Env var overrides use prefix PDFDESK_.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("PDFDESK_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "pdfdesk"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PDFDESK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c.normalize(), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "http://127.0.0.1:5000")
	v.SetDefault("server.listen", ":5000")
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.rate_exempt_loopback", true)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "pdfdesk", "cache.db"))
	v.SetDefault("extract.timeout", 2*time.Minute)
	v.SetDefault("extract.max_in_flight", 4)
	v.SetDefault("preview.max_lines", 24)
	v.SetDefault("preview.width", 72)
	v.SetDefault("ui.name_width", 18)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(os.Getenv("HOME"), ".local", "state", "pdfdesk", "pdfdesk.log"))
}

// Default returns the built-in configuration without reading files or env.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	return c.normalize()
}

func (c Config) normalize() Config {
	c.Server.URL = strings.TrimRight(strings.TrimSpace(c.Server.URL), "/")
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 50
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 1
	}
	if c.Extract.MaxInFlight <= 0 {
		c.Extract.MaxInFlight = 1
	}
	if c.Preview.MaxLines <= 0 {
		c.Preview.MaxLines = 24
	}
	if c.Preview.Width <= 0 {
		c.Preview.Width = 72
	}
	if c.UI.NameWidth < 4 {
		c.UI.NameWidth = 4
	}
	return c
}

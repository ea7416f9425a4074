// Package config loads and validates webshot configuration via Viper.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// RequestTimeoutSeconds bounds a whole request; 0 leaves batches unbounded.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// BrowserConfig configures how Chrome is launched.
type BrowserConfig struct {
	Headless         bool   `mapstructure:"headless"`
	NoSandbox        bool   `mapstructure:"no_sandbox"`
	IgnoreCertErrors bool   `mapstructure:"ignore_cert_errors"`
	IsolatePages     bool   `mapstructure:"isolate_pages"`
	UserAgent        string `mapstructure:"user_agent"`
	WindowWidth      int    `mapstructure:"window_width"`
	WindowHeight     int    `mapstructure:"window_height"`
	ExecPath         string `mapstructure:"exec_path"`
}

// ScreenshotConfig governs the capture pipeline and where images land.
type ScreenshotConfig struct {
	Dir               string  `mapstructure:"dir"`
	URLPrefix         string  `mapstructure:"url_prefix"`
	NavTimeoutSeconds int     `mapstructure:"nav_timeout_seconds"`
	Concurrency       int     `mapstructure:"concurrency"`
	DomainQPS         float64 `mapstructure:"domain_qps"`
}

// StorageConfig enables the optional GCS mirror.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres result ledger.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for batch notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from an optional file and WEBSHOT_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBSHOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Cloud Run and similar platforms inject PORT.
	if err := v.BindEnv("server.port", "WEBSHOT_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.request_timeout_seconds", 0)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.ignore_cert_errors", true)
	v.SetDefault("browser.isolate_pages", false)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 800)
	v.SetDefault("screenshot.dir", "static/screenshots")
	v.SetDefault("screenshot.url_prefix", "/static/screenshots")
	v.SetDefault("screenshot.nav_timeout_seconds", 30)
	v.SetDefault("screenshot.concurrency", 1)
	v.SetDefault("screenshot.domain_qps", 0)
	v.SetDefault("storage.prefix", "screenshots")
	v.SetDefault("db.table", "screenshot_results")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.topic_name", "screenshot-batches")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("server.request_timeout_seconds must be >= 0")
	}
	if c.Browser.WindowWidth < 0 || c.Browser.WindowHeight < 0 {
		return fmt.Errorf("browser window size must be >= 0")
	}
	if strings.TrimSpace(c.Screenshot.Dir) == "" {
		return fmt.Errorf("screenshot.dir is required")
	}
	if !strings.HasPrefix(c.Screenshot.URLPrefix, "/") {
		return fmt.Errorf("screenshot.url_prefix must start with /")
	}
	if c.Screenshot.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("screenshot.nav_timeout_seconds must be > 0")
	}
	if c.Screenshot.Concurrency <= 0 {
		return fmt.Errorf("screenshot.concurrency must be > 0")
	}
	if c.Screenshot.DomainQPS < 0 {
		return fmt.Errorf("screenshot.domain_qps must be >= 0")
	}
	if c.DB.MinConns < 0 || c.DB.MaxConns < 0 || (c.DB.MaxConns > 0 && c.DB.MinConns > c.DB.MaxConns) {
		return fmt.Errorf("db.min_conns must be between 0 and db.max_conns")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name is required when pubsub.project_id is set")
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// NavTimeout converts the navigation budget into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Screenshot.NavTimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request budget; zero means none.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Quote    Quote    `mapstructure:"quote"`
	Notifier Notifier `mapstructure:"notifier"`
	Alerts   Alerts   `mapstructure:"alerts"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Quote holds the configuration for the price quote API.
type Quote struct {
	BaseURL        string            `mapstructure:"base_url"`
	Timeout        int               `mapstructure:"timeout"` // seconds
	RateLimit      float64           `mapstructure:"rate_limit"`
	RateLimitBurst int               `mapstructure:"rate_limit_burst"`
	MaxRetries     int               `mapstructure:"max_retries"`
	TickerMap      map[string]string `mapstructure:"ticker_map"` // suffix -> replacement
}

// Notifier holds the configuration for alert delivery.
type Notifier struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Timeout    int    `mapstructure:"timeout"` // seconds
	DryRun     bool   `mapstructure:"dry_run"`
}

// Alerts holds the configuration for the alert check loop.
type Alerts struct {
	TickInterval     int     `mapstructure:"tick_interval"` // seconds
	Workers          int     `mapstructure:"workers"`
	DefaultThreshold float64 `mapstructure:"default_threshold"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	err = v.ReadInConfig()
	if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.dsn", "tradewatch.db")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("quote.base_url", "http://localhost:5000")
	v.SetDefault("quote.timeout", 10)
	v.SetDefault("quote.rate_limit", 5) // requests per second
	v.SetDefault("quote.rate_limit_burst", 2)
	v.SetDefault("quote.max_retries", 3)

	v.SetDefault("notifier.timeout", 10)
	v.SetDefault("notifier.dry_run", false)

	v.SetDefault("alerts.tick_interval", 60)
	v.SetDefault("alerts.workers", 4)
	v.SetDefault("alerts.default_threshold", 5.0)
}

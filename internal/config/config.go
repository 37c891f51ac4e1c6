package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env             string        `env:"ENV" envDefault:"local"`
	Port            string        `env:"PORT" envDefault:"3001"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	WeatherAPI WeatherAPI
	Telegram   Telegram

	DailyLimit  int           `env:"DAILY_LIMIT" envDefault:"999"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	DatabaseURL string        `env:"DATABASE_URL"`

	// Cron specs, an empty value disables the job.
	CacheSweepSchedule  string `env:"CACHE_SWEEP_SCHEDULE" envDefault:"@every 15m"`
	UsageReportSchedule string `env:"USAGE_REPORT_SCHEDULE" envDefault:"0 23 * * *"`
}

type WeatherAPI struct {
	// APIKey may be empty: the service still starts and reports a
	// configuration error per lookup.
	APIKey      string        `env:"OPENWEATHER_API_KEY"`
	BaseURL     string        `env:"OPENWEATHER_BASE_URL" envDefault:"https://api.openweathermap.org/data/2.5"`
	HTTPTimeout time.Duration `env:"OPENWEATHER_TIMEOUT" envDefault:"8s"`
}

type Telegram struct {
	Token  string `env:"TELEGRAM_TOKEN"`
	ChatID int64  `env:"TELEGRAM_CHAT_ID"`
}

// Enabled reports whether operator notifications can go to Telegram.
func (t Telegram) Enabled() bool {
	return t.Token != "" && t.ChatID != 0
}

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if cfg.DailyLimit <= 0 {
		return nil, fmt.Errorf("DAILY_LIMIT must be positive, got %d", cfg.DailyLimit)
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL must be positive, got %s", cfg.CacheTTL)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("read env config: %v", err)
	}

	return cfg
}

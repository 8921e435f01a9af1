package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config contém as configurações da aplicação
type Config struct {
	TelegramBotToken     string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID       int64         `env:"TELEGRAM_CHAT_ID"`
	CheckIntervalSeconds int           `env:"CHECK_INTERVAL_SECONDS" envDefault:"60"`
	CheckInterval        time.Duration
	DatabasePath         string        `env:"DATABASE_PATH" envDefault:"./monitors.db"`
	HTTPTimeout          time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	UserAgent            string        `env:"USER_AGENT" envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"`
	CollectionMaxPages   int           `env:"COLLECTION_MAX_PAGES" envDefault:"1"`
	RequestDelay         time.Duration `env:"REQUEST_DELAY" envDefault:"0s"`
	MetricsAddr          string        `env:"METRICS_ADDR"`

	Log Log
}

// Log contém as configurações de log
type Log struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty     bool   `env:"LOG_PRETTY" envDefault:"false"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"7"`
}

// Load carrega as configurações das variáveis de ambiente
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("erro ao ler variáveis de ambiente: %w", err)
	}

	if cfg.CheckIntervalSeconds <= 0 {
		return nil, fmt.Errorf("CHECK_INTERVAL_SECONDS deve ser positivo, recebido %d", cfg.CheckIntervalSeconds)
	}
	if cfg.CollectionMaxPages < 1 {
		return nil, fmt.Errorf("COLLECTION_MAX_PAGES deve ser pelo menos 1, recebido %d", cfg.CollectionMaxPages)
	}
	cfg.CheckInterval = time.Duration(cfg.CheckIntervalSeconds) * time.Second

	return &cfg, nil
}

// RequireTelegram verifica se o token do bot foi configurado
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN não configurado")
	}
	return nil
}

package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Provider ProviderConfig `koanf:"provider"`
	Wallet   WalletConfig   `koanf:"wallet"`
	Retry    RetryConfig    `koanf:"retry"`
	Worker   WorkerConfig   `koanf:"worker"`
	Logger   LoggerConfig   `koanf:"logger"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// GatewayConfig drives the edge auth filter and reverse proxy.
// Routes maps a path prefix (e.g. /api/v1/payments) to an upstream base URL.
type GatewayConfig struct {
	Port             string            `koanf:"port"`
	Routes           map[string]string `koanf:"routes"`
	JWTPublicKeyPath string            `koanf:"jwt_public_key_path"`
	UpstreamTimeout  time.Duration     `koanf:"upstream_timeout"`
}

// ProviderConfig tunes the mock payment provider.
type ProviderConfig struct {
	SuccessRate  float64 `koanf:"success_rate"`
	MinLatencyMs int     `koanf:"min_latency_ms"`
	MaxLatencyMs int     `koanf:"max_latency_ms"`
}

// WalletConfig points the orchestrator at the wallet ledger. When BaseURL is
// empty the ledger is invoked in-process.
type WalletConfig struct {
	BaseURL     string        `koanf:"base_url"`
	ConnTimeout time.Duration `koanf:"conn_timeout"`
}

type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxRetries int           `koanf:"max_retries"`
}

type WorkerConfig struct {
	Interval   time.Duration `koanf:"interval" validate:"required"`
	BatchSize  int           `koanf:"batch_size" validate:"required"`
	PendingAge time.Duration `koanf:"pending_age"`
	PaymentTTL time.Duration `koanf:"payment_ttl"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("PAYFLOW_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "PAYFLOW_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	applyDefaults(mainConfig)

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

func applyDefaults(c *Config) {
	if c.Provider.SuccessRate == 0 {
		c.Provider.SuccessRate = 0.85
	}
	if c.Provider.MaxLatencyMs == 0 {
		c.Provider.MinLatencyMs = 50
		c.Provider.MaxLatencyMs = 200
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = time.Second
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Worker.PendingAge == 0 {
		c.Worker.PendingAge = 5 * time.Minute
	}
	if c.Worker.PaymentTTL == 0 {
		c.Worker.PaymentTTL = 15 * time.Minute
	}
	if c.Gateway.UpstreamTimeout == 0 {
		c.Gateway.UpstreamTimeout = 10 * time.Second
	}
	if c.Wallet.ConnTimeout == 0 {
		c.Wallet.ConnTimeout = 5 * time.Second
	}
}

package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	ProcessorBaseURL   string `env:"PROCESSOR_BASE_URL" envDefault:"https://api.chapa.co/v1"`
	ProcessorSecretKey string `env:"PROCESSOR_SECRET_KEY,required,notEmpty"`
	ProcessorTimeoutS  int    `env:"PROCESSOR_TIMEOUT_S" envDefault:"15"`

	PaymentCallbackURL string `env:"PAYMENT_CALLBACK_URL"`
	PaymentReturnURL   string `env:"PAYMENT_RETURN_URL"`
	DefaultCurrency    string `env:"DEFAULT_CURRENCY" envDefault:"ETB"`
	WebhookSecret      string `env:"WEBHOOK_SECRET"`

	AMQPURL        string `env:"AMQP_URL"`
	NotifyExchange string `env:"NOTIFY_EXCHANGE" envDefault:"payments"`
	NotifyQueue    string `env:"NOTIFY_QUEUE" envDefault:"payment-notifications"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	IdempotencyTTLH int `env:"IDEMPOTENCY_TTL_H" envDefault:"24"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.ProcessorTimeoutS <= 0 {
		return nil, fmt.Errorf("config.Load: PROCESSOR_TIMEOUT_S must be positive, got %d", cfg.ProcessorTimeoutS)
	}
	return &cfg, nil
}

func (c *Config) ProcessorTimeout() time.Duration {
	return time.Duration(c.ProcessorTimeoutS) * time.Second
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLH) * time.Hour
}

func (c *Config) NotificationsEnabled() bool {
	return c.AMQPURL != ""
}

package service

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

type Config struct {
	DatabaseUri             string    `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns        int       `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns    int       `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime int       `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	SentryDSN               string    `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate  float64   `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	DatadogAgentUrl         string    `envconfig:"DATADOG_AGENT_URL"`
	LogFilePath             string    `envconfig:"LOG_FILE_PATH"`
	AdminToken              string    `envconfig:"ADMIN_TOKEN"`
	Port                    int       `envconfig:"PORT" default:"8080"`
	DefaultRateLimit        int       `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit         int       `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit          int       `envconfig:"BURST_RATE_LIMIT" default:"1"`
	EnablePrometheus        bool      `envconfig:"ENABLE_PROMETHEUS" default:"false"`
	PrometheusPort          int       `envconfig:"PROMETHEUS_PORT" default:"9092"`
	WebhookUrl              string    `envconfig:"WEBHOOK_URL"`
	RabbitMQUri             string    `envconfig:"RABBITMQ_URI"`
	RabbitMQInvoiceExchange string    `envconfig:"RABBITMQ_INVOICE_EXCHANGE" default:"evmhub_invoice"`
	MaxAllowedGas           WeiAmount `envconfig:"MAX_ALLOWED_GAS" required:"true"`       // wei
	MaxPriorityFee          WeiAmount `envconfig:"MAX_PRIORITY_FEE" default:"1000000000"` // wei, 1 gwei
	MinSendAmount           WeiAmount `envconfig:"MIN_SEND_AMOUNT" default:"500000"`      // wei
	Confirmations           uint64    `envconfig:"CONFIRMATIONS" default:"2"`
	SweepRecheckTimeout     int       `envconfig:"SWEEP_RECHECK_TIMEOUT" default:"30"`     // seconds
	InvoiceCheckInterval    int       `envconfig:"INVOICE_CHECK_INTERVAL" default:"60"`    // seconds
	MaxInvoiceLifetime      uint64    `envconfig:"MAX_INVOICE_LIFETIME" default:"2592000"` // seconds, 0 disables the check
}

func (c *Config) checkInterval() time.Duration {
	if c.InvoiceCheckInterval <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.InvoiceCheckInterval) * time.Second
}

// sweepRecheckTimeout bounds the wait on a sweep submitted by an earlier pass,
// the invoice lock is held meanwhile.
func (c *Config) sweepRecheckTimeout() time.Duration {
	if c.SweepRecheckTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.SweepRecheckTimeout) * time.Second
}

// WeiAmount is a non negative base unit amount read from the environment.
// Amounts in wei don't fit the integer types envconfig knows about.
type WeiAmount struct {
	*big.Int
}

func NewWeiAmount(x int64) WeiAmount {
	return WeiAmount{big.NewInt(x)}
}

func (w *WeiAmount) Decode(value string) error {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return fmt.Errorf("invalid wei amount: %q", value)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("wei amount must not be negative: %q", value)
	}
	w.Int = amount
	return nil
}

// Value never returns nil so it can be used in arithmetic directly.
func (w WeiAmount) Value() *big.Int {
	if w.Int == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(w.Int)
}

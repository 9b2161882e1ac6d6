package chain

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RPCUrl                   string  `envconfig:"RPC_URL" required:"true"`
	RPCTimeout               int     `envconfig:"RPC_TIMEOUT" default:"15"`               // seconds, per call
	RPCRateLimit             float64 `envconfig:"RPC_RATE_LIMIT" default:"10"`            // requests/second
	RPCRetryMaxElapsed       int     `envconfig:"RPC_RETRY_MAX_ELAPSED" default:"30"`     // seconds
	ConfirmationTimeout      int     `envconfig:"CONFIRMATION_TIMEOUT" default:"300"`     // seconds
	ConfirmationPollInterval int     `envconfig:"CONFIRMATION_POLL_INTERVAL" default:"5"` // seconds
}

func LoadConfig() (c *Config, err error) {
	c = &Config{}
	err = envconfig.Process("", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) callTimeout() time.Duration {
	return time.Duration(c.RPCTimeout) * time.Second
}

func (c *Config) retryMaxElapsed() time.Duration {
	return time.Duration(c.RPCRetryMaxElapsed) * time.Second
}

func (c *Config) confirmationTimeout() time.Duration {
	return time.Duration(c.ConfirmationTimeout) * time.Second
}

func (c *Config) pollInterval() time.Duration {
	return time.Duration(c.ConfirmationPollInterval) * time.Second
}

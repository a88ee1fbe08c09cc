package bridge

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// DefaultEndpoint is the default address of the automation bridge running
	// next to the host application.
	DefaultEndpoint = "http://127.0.0.1:48190"
	// DefaultRequestTimeout bounds a single bridge call. Export calls use the
	// per-format advisory timeouts on top of this.
	DefaultRequestTimeout = 10 * time.Minute
)

// Config is the connection configuration for the automation bridge. Values
// can be overridden from the environment (REVIT_BRIDGE_ENDPOINT,
// REVIT_BRIDGE_TOKEN, REVIT_BRIDGE_REQUEST_TIMEOUT).
type Config struct {
	Endpoint       string        `json:"endpoint" envconfig:"REVIT_BRIDGE_ENDPOINT"`
	Token          string        `json:"token,omitempty" envconfig:"REVIT_BRIDGE_TOKEN"`
	RequestTimeout time.Duration `json:"request-timeout,omitempty" envconfig:"REVIT_BRIDGE_REQUEST_TIMEOUT"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:       DefaultEndpoint,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() error {
	return envconfig.Process("", c)
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("bridge endpoint is required")
	}
	return nil
}

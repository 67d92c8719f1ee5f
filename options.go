package ioc

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/toutaio/toutago-ioc/config"
	"github.com/toutaio/toutago-ioc/internal/logging"
)

// Option is a function that configures a Container.
type Option func(*Container) error

// WithLogger sets the logger used for registration and resolution events.
// Events are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithDebug enables debug logging to stderr in a human-readable format.
func WithDebug() Option {
	return func(c *Container) error {
		logger, err := logging.New(logging.LevelDebug, logging.FormatConsole)
		if err != nil {
			return err
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics registers the container's collectors with reg.
// The namespace defaults to "ioc" and can be changed with WithMetricsNamespace
// or WithConfig, in any order.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Container) error {
		if reg == nil {
			return fmt.Errorf("metrics registerer cannot be nil")
		}
		c.metricsRegistry = reg
		return nil
	}
}

// WithMetricsNamespace sets the namespace prefixed to metric names.
func WithMetricsNamespace(namespace string) Option {
	return func(c *Container) error {
		if namespace == "" {
			return fmt.Errorf("metrics namespace cannot be empty")
		}
		c.metricsNamespace = namespace
		return nil
	}
}

// WithValidation makes BootProviders run Validate after booting providers.
func WithValidation() Option {
	return func(c *Container) error {
		c.validateOnBoot = true
		return nil
	}
}

// WithConfig applies settings loaded by config.Load.
//
// Example:
//
//	container := ioc.New(ioc.WithConfig(config.Load()))
func WithConfig(cfg *config.Config) Option {
	return func(c *Container) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}

		level := cfg.LogLevel
		if cfg.Debug {
			level = logging.LevelDebug
		}
		logger, err := logging.New(level, cfg.LogFormat)
		if err != nil {
			return err
		}
		c.logger = logger

		if cfg.MetricsNamespace != "" {
			c.metricsNamespace = cfg.MetricsNamespace
		}
		c.validateOnBoot = c.validateOnBoot || cfg.ValidateOnBoot
		return nil
	}
}

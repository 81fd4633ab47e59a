// Package config loads the healthd YAML configuration and turns it into
// health checks.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Check types.
const (
	TypeHTTP     = "http"
	TypeTCP      = "tcp"
	TypeGRPC     = "grpc"
	TypePostgres = "postgres"
	TypeMemory   = "memory"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the root of the healthd configuration file.
type Config struct {
	Application ApplicationConfig `yaml:"application"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing"`

	// DefaultTimeout applies to checks without their own timeout.
	DefaultTimeout time.Duration `yaml:"default_timeout" validate:"gte=0"`

	Checks []CheckConfig `yaml:"checks" validate:"unique=Name,dive"`
}

// ApplicationConfig names the application in reports. Empty values fall
// back to build information.
type ApplicationConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr   string `yaml:"addr" validate:"required,hostname_port"`
	Prefix string `yaml:"prefix" validate:"omitempty,startswith=/"`

	// RateLimit caps report requests per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`

	// RateLimitWait queues requests over the limit for up to MaxWait
	// instead of rejecting them at once.
	RateLimitWait bool          `yaml:"rate_limit_wait"`
	MaxWait       time.Duration `yaml:"max_wait" validate:"gte=0"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// MetricsConfig configures the metrics exporter.
type MetricsConfig struct {
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=prometheus otlp stdout none"`
}

// TracingConfig configures the trace exporter.
type TracingConfig struct {
	Exporter  string  `yaml:"exporter" validate:"omitempty,oneof=otlp jaeger stdout none"`
	SamplePct float64 `yaml:"sample_pct" validate:"gte=0,lte=1"`
}

// CheckConfig describes one check. Which target field is required depends
// on Type.
type CheckConfig struct {
	Name        string        `yaml:"name" validate:"required"`
	Type        string        `yaml:"type" validate:"required,oneof=http tcp grpc postgres memory"`
	Description string        `yaml:"description"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	WarnOnError bool          `yaml:"warn_on_error"`

	// http
	URL               string            `yaml:"url" validate:"required_if=Type http,omitempty,url"`
	Method            string            `yaml:"method" validate:"omitempty,oneof=GET HEAD POST"`
	Headers           map[string]string `yaml:"headers"`
	ExpectStatusMin   int               `yaml:"expect_status_min" validate:"omitempty,gte=100,lte=599"`
	ExpectStatusMax   int               `yaml:"expect_status_max" validate:"omitempty,gte=100,lte=599,gtefield=ExpectStatusMin"`
	Retries           int               `yaml:"retries" validate:"gte=0,lte=10"`
	RetryInitialDelay time.Duration     `yaml:"retry_initial_delay" validate:"gte=0"`

	// tcp
	Address string `yaml:"address" validate:"required_if=Type tcp,omitempty,hostname_port"`

	// grpc
	Target  string `yaml:"target" validate:"required_if=Type grpc"`
	Service string `yaml:"service"`

	// postgres
	DSN   string `yaml:"dsn" validate:"required_if=Type postgres"`
	Query string `yaml:"query"`

	// memory
	WarningThreshold  float64 `yaml:"warning_threshold" validate:"omitempty,gt=0,lt=1"`
	CriticalThreshold float64 `yaml:"critical_threshold" validate:"omitempty,gt=0,lt=1"`
	MaxAlloc          uint64  `yaml:"max_alloc"`
}

// Default returns a configuration with every default filled in and no checks.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Prefix:          "/health",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Exporter: "prometheus"},
		Tracing: TracingConfig{Exporter: "none", SamplePct: 1},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// describe renders a field error as "checks[1].url: required_if".
func describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s: %s=%s", path, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s: %s", path, fe.Tag())
}

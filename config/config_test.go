package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/healthreport/health"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/health", cfg.Server.Prefix)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "prometheus", cfg.Metrics.Exporter)
	assert.Empty(t, cfg.Checks)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid checks",
			mutate: func(c *Config) { c.Checks = validChecks() },
		},
		{
			name:    "missing addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: "server.addr: required",
		},
		{
			name:    "prefix without slash",
			mutate:  func(c *Config) { c.Server.Prefix = "health" },
			wantErr: "server.prefix: startswith=/",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "logging.level: oneof",
		},
		{
			name: "unknown check type",
			mutate: func(c *Config) {
				c.Checks = []CheckConfig{{Name: "x", Type: "redis"}}
			},
			wantErr: "checks[0].type: oneof",
		},
		{
			name: "http without url",
			mutate: func(c *Config) {
				c.Checks = []CheckConfig{{Name: "api", Type: TypeHTTP}}
			},
			wantErr: "checks[0].url: required_if",
		},
		{
			name: "tcp without address",
			mutate: func(c *Config) {
				c.Checks = []CheckConfig{{Name: "redis", Type: TypeTCP}}
			},
			wantErr: "checks[0].address: required_if",
		},
		{
			name: "duplicate names",
			mutate: func(c *Config) {
				c.Checks = []CheckConfig{
					{Name: "mem", Type: TypeMemory},
					{Name: "mem", Type: TypeMemory},
				}
			},
			wantErr: "checks: unique",
		},
		{
			name: "status range inverted",
			mutate: func(c *Config) {
				c.Checks = []CheckConfig{{Name: "api", Type: TypeHTTP, URL: "http://api", ExpectStatusMin: 300, ExpectStatusMax: 200}}
			},
			wantErr: "checks[0].expect_status_max: gtefield",
		},
		{
			name: "negative timeout",
			mutate: func(c *Config) {
				c.Checks = []CheckConfig{{Name: "mem", Type: TypeMemory, Timeout: -time.Second}}
			},
			wantErr: "checks[0].timeout: gte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Checks = []CheckConfig{
		{Name: "api", Type: TypeHTTP},
		{Name: "db", Type: TypePostgres},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checks[0].url")
	assert.Contains(t, err.Error(), "checks[1].dsn")
}

func TestBuildChecks(t *testing.T) {
	cfg := Default()
	cfg.Checks = validChecks()
	require.NoError(t, cfg.Validate())

	built := cfg.BuildChecks()
	require.Len(t, built, len(cfg.Checks))
	for i, c := range built {
		assert.Equal(t, cfg.Checks[i].Name, c.Name)
		assert.NotNil(t, c.Fn, "check %s has no function", c.Name)
	}
	assert.Equal(t, 2*time.Second, built[0].Timeout)
	assert.True(t, built[1].WarnOnError)
}

func TestCheckConfig_BuildUnknownType(t *testing.T) {
	c := CheckConfig{Name: "odd", Type: "smtp"}.Build()
	assert.Equal(t, "odd", c.Name)
	assert.Nil(t, c.Fn)
}

func TestBuildChecks_MemoryRuns(t *testing.T) {
	cfg := Default()
	cfg.Checks = []CheckConfig{{Name: "heap", Type: TypeMemory, MaxAlloc: 1, WarnOnError: true}}

	check := cfg.BuildChecks()[0]
	require.NotNil(t, check.Fn)
	assert.True(t, check.WarnOnError)

	res := health.NewRunner().Run(context.Background(), check)
	assert.Equal(t, health.StatusWarning, res.Status)
	assert.Contains(t, res.Message, "memory usage critical")
}

func validChecks() []CheckConfig {
	return []CheckConfig{
		{Name: "api", Type: TypeHTTP, URL: "http://api.internal/healthz", Timeout: 2 * time.Second, Retries: 2},
		{Name: "redis", Type: TypeTCP, Address: "redis:6379", WarnOnError: true},
		{Name: "orders", Type: TypeGRPC, Target: "dns:///orders:9090", Service: "orders.v1.Orders"},
		{Name: "db", Type: TypePostgres, DSN: "postgres://health@db:5432/app"},
		{Name: "memory", Type: TypeMemory, WarningThreshold: 0.7, CriticalThreshold: 0.9},
	}
}

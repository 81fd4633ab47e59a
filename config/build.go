package config

import (
	"github.com/jonwraymond/healthreport/checks"
	"github.com/jonwraymond/healthreport/health"
	"github.com/jonwraymond/healthreport/resilience"
)

// BuildChecks turns the configured checks into health checks, in file order.
func (c *Config) BuildChecks() []health.Check {
	out := make([]health.Check, 0, len(c.Checks))
	for _, cc := range c.Checks {
		out = append(out, cc.Build())
	}
	return out
}

// Build turns one configured check into a health check. The configuration
// must have passed Validate.
func (cc CheckConfig) Build() health.Check {
	switch cc.Type {
	case TypeHTTP:
		hc := checks.HTTPConfig{
			Name:            cc.Name,
			Description:     cc.Description,
			URL:             cc.URL,
			Method:          cc.Method,
			Headers:         cc.Headers,
			ExpectStatusMin: cc.ExpectStatusMin,
			ExpectStatusMax: cc.ExpectStatusMax,
			Timeout:         cc.Timeout,
			WarnOnError:     cc.WarnOnError,
		}
		if cc.Retries > 0 {
			hc.Retry = &resilience.RetryConfig{
				MaxAttempts:  cc.Retries + 1,
				InitialDelay: cc.RetryInitialDelay,
				Jitter:       true,
			}
		}
		return checks.HTTP(hc)

	case TypeTCP:
		return checks.TCP(checks.TCPConfig{
			Name:        cc.Name,
			Description: cc.Description,
			Address:     cc.Address,
			Timeout:     cc.Timeout,
			WarnOnError: cc.WarnOnError,
		})

	case TypeGRPC:
		return checks.GRPC(checks.GRPCConfig{
			Name:        cc.Name,
			Description: cc.Description,
			Target:      cc.Target,
			Service:     cc.Service,
			Timeout:     cc.Timeout,
			WarnOnError: cc.WarnOnError,
		})

	case TypePostgres:
		return checks.Postgres(checks.PostgresConfig{
			Name:        cc.Name,
			Description: cc.Description,
			DSN:         cc.DSN,
			Query:       cc.Query,
			Timeout:     cc.Timeout,
			WarnOnError: cc.WarnOnError,
		})

	case TypeMemory:
		mc := health.MemoryCheck(health.MemoryCheckConfig{
			Name:              cc.Name,
			Description:       cc.Description,
			WarningThreshold:  cc.WarningThreshold,
			CriticalThreshold: cc.CriticalThreshold,
			MaxAlloc:          cc.MaxAlloc,
			Timeout:           cc.Timeout,
		})
		mc.WarnOnError = cc.WarnOnError
		return mc
	}

	// Fn stays nil, so the check reports ErrNilCheckFunc instead of passing.
	return health.Check{Name: cc.Name, Description: cc.Description}
}

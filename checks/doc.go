// Package checks provides ready-made health checks for common dependencies.
//
// Each constructor takes a config struct and returns a health.Check that
// can be registered on an Aggregator or passed to GetStatus. Connections
// are opened per run and closed before the check returns.
//
//	agg.Register(checks.HTTP(checks.HTTPConfig{
//	    Name: "payments",
//	    URL:  "https://payments.internal/healthz",
//	}))
//	agg.Register(checks.Postgres(checks.PostgresConfig{
//	    Name: "db",
//	    DSN:  os.Getenv("DATABASE_URL"),
//	}))
package checks

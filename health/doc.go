// Package health runs health checks and aggregates them into an application
// health report.
//
// # Core Concepts
//
// A Check is a named probe function with an optional timeout. A Runner
// executes one check under its timeout and always yields a Result, whatever
// the probe does: returns, fails, panics or never returns. An Aggregator
// runs a set of checks concurrently and reduces their statuses (ERROR over
// WARNING over OK) into a Report.
//
// # Basic Usage
//
//	db := health.Check{
//	    Name:        "database",
//	    Description: "Primary database",
//	    Timeout:     2 * time.Second,
//	    Fn: func(ctx context.Context, s *health.State) (string, error) {
//	        return "", pool.Ping(ctx)
//	    },
//	}
//
//	agg := health.NewAggregator(health.WithEnvironment(
//	    health.ProcessEnvironment("orders", "1.4.2"),
//	))
//	report := agg.GetStatus(ctx, []health.Check{db, health.MemoryCheck(health.MemoryCheckConfig{})})
//
// A check may downgrade its own failure, or report a warning without failing:
//
//	Fn: func(ctx context.Context, s *health.State) (string, error) {
//	    if lag > threshold {
//	        s.Warn(fmt.Sprintf("replication lag %s", lag))
//	        return "", nil
//	    }
//	    s.SetWarnOnError(true)
//	    return "", replica.Ping(ctx)
//	}
//
// # HTTP Endpoints
//
// NewHandler serves a report on GET / as JSON or XML, chosen from the Accept
// header, with 503 when the report is ERROR:
//
//	mux := http.NewServeMux()
//	health.Mount(mux, "/health", health.NewHandler(checks))
//	mux.Handle("/livez", health.LivenessHandler())
package health

package checks

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/jonwraymond/healthreport/health"
)

// GRPCConfig configures a probe against the standard grpc.health.v1 service.
type GRPCConfig struct {
	Name        string
	Description string

	// Target is a gRPC dial target, e.g. "dns:///orders:9090".
	Target string

	// Service is the service name to query. Empty asks about the server
	// as a whole.
	Service string

	Timeout     time.Duration
	WarnOnError bool

	// DialOptions replace the default insecure transport credentials.
	DialOptions []grpc.DialOption
}

// GRPC returns a check that calls grpc.health.v1.Health/Check and passes
// when the service reports SERVING.
func GRPC(cfg GRPCConfig) health.Check {
	opts := cfg.DialOptions
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	return health.Check{
		Name:        cfg.Name,
		Description: cfg.Description,
		Timeout:     cfg.Timeout,
		WarnOnError: cfg.WarnOnError,
		Fn: func(ctx context.Context, _ *health.State) (string, error) {
			if cfg.Target == "" {
				return "", fmt.Errorf("%w: target", ErrMissingTarget)
			}

			conn, err := grpc.NewClient(cfg.Target, opts...)
			if err != nil {
				return "", fmt.Errorf("grpc client: %w", err)
			}
			defer func() { _ = conn.Close() }()

			resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{
				Service: cfg.Service,
			})
			if err != nil {
				return "", err
			}
			if st := resp.GetStatus(); st != healthpb.HealthCheckResponse_SERVING {
				return "", fmt.Errorf("%w: %s", ErrNotServing, st)
			}

			if cfg.Service == "" {
				return "SERVING", nil
			}
			return cfg.Service + " SERVING", nil
		},
	}
}

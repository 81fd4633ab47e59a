package checks

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jonwraymond/healthreport/health"
)

// TCPConfig configures a TCP dial probe.
type TCPConfig struct {
	Name        string
	Description string

	// Address is host:port.
	Address string

	Timeout     time.Duration
	WarnOnError bool
}

// TCP returns a check that passes when a TCP connection to cfg.Address
// can be established.
func TCP(cfg TCPConfig) health.Check {
	return health.Check{
		Name:        cfg.Name,
		Description: cfg.Description,
		Timeout:     cfg.Timeout,
		WarnOnError: cfg.WarnOnError,
		Fn: func(ctx context.Context, _ *health.State) (string, error) {
			if cfg.Address == "" {
				return "", fmt.Errorf("%w: address", ErrMissingTarget)
			}

			var d net.Dialer
			conn, err := d.DialContext(ctx, "tcp", cfg.Address)
			if err != nil {
				return "", err
			}
			_ = conn.Close()
			return "connected to " + cfg.Address, nil
		},
	}
}

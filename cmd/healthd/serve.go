package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jonwraymond/healthreport/config"
	"github.com/jonwraymond/healthreport/health"
	"github.com/jonwraymond/healthreport/observe"
	"github.com/jonwraymond/healthreport/resilience"
)

const defaultShutdownTimeout = 10 * time.Second

type serveOptions struct {
	configPath      string
	addr            string
	prefix          string
	logLevel        string
	metricsExporter string
	watch           bool
}

func newServeCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the health report over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx, opts.configPath, nil)
			if err != nil {
				return err
			}
			opts.apply(cfg)

			d, err := newDaemon(ctx, cfg)
			if err != nil {
				return err
			}
			return d.run(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "healthd.yaml", "Path to the checks configuration")
	f.StringVar(&opts.addr, "addr", "", "Listen address (overrides server.addr)")
	f.StringVar(&opts.prefix, "prefix", "", "Report path prefix (overrides server.prefix)")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&opts.metricsExporter, "metrics-exporter", "", "Metrics exporter: prometheus, otlp, stdout, none")
	f.BoolVar(&opts.watch, "watch", false, "Reload checks when the config file changes")
	return cmd
}

// apply lets flags override the file.
func (o serveOptions) apply(cfg *config.Config) {
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.prefix != "" {
		cfg.Server.Prefix = o.prefix
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.metricsExporter != "" {
		cfg.Metrics.Exporter = o.metricsExporter
	}
}

type daemon struct {
	cfg    *config.Config
	obs    observe.Observer
	logger observe.Logger
	agg    *health.Aggregator
	mux    *http.ServeMux
}

func newDaemon(ctx context.Context, cfg *config.Config) (*daemon, error) {
	obs, err := observe.NewObserver(ctx, observerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, fmt.Errorf("init middleware: %w", err)
	}

	d := &daemon{
		cfg:    cfg,
		obs:    obs,
		logger: obs.Logger(),
		agg:    newAggregator(cfg, mw),
		mux:    http.NewServeMux(),
	}
	d.agg.Replace(cfg.BuildChecks())

	handlerOpts := []health.HandlerOption{health.WithLogger(d.logger)}
	if cfg.Server.RateLimit > 0 {
		handlerOpts = append(handlerOpts, health.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        cfg.Server.RateLimit,
			Burst:       cfg.Server.Burst,
			WaitOnLimit: cfg.Server.RateLimitWait,
			MaxWait:     cfg.Server.MaxWait,
		})))
	}
	health.Mount(d.mux, cfg.Server.Prefix, health.ReportHandler(d.agg, handlerOpts...))
	d.mux.Handle("/livez", health.LivenessHandler())
	if cfg.Metrics.Exporter == "prometheus" {
		d.mux.Handle("/metrics", promhttp.Handler())
	}
	return d, nil
}

func newAggregator(cfg *config.Config, mw *observe.Middleware) *health.Aggregator {
	opts := []health.Option{
		health.WithEnvironment(health.ProcessEnvironment(cfg.Application.Name, cfg.Application.Version)),
	}
	if cfg.DefaultTimeout > 0 {
		opts = append(opts, health.WithDefaultTimeout(cfg.DefaultTimeout))
	}
	if mw != nil {
		opts = append(opts, health.WithMiddleware(mw))
	}
	return health.NewAggregator(opts...)
}

func observerConfig(cfg *config.Config) observe.Config {
	name := cfg.Application.Name
	if name == "" {
		name = "healthd"
	}
	return observe.Config{
		ServiceName: name,
		Version:     cfg.Application.Version,
		Tracing: observe.TracingConfig{
			Enabled:   enabled(cfg.Tracing.Exporter),
			Exporter:  cfg.Tracing.Exporter,
			SamplePct: cfg.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  enabled(cfg.Metrics.Exporter),
			Exporter: cfg.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.Logging.Level,
		},
	}
}

func enabled(exporter string) bool {
	return exporter != "" && exporter != "none"
}

func (d *daemon) handler() http.Handler {
	return otelhttp.NewHandler(d.mux, "healthd")
}

// reload swaps in the checks of a new configuration. Server settings only
// take effect on restart.
func (d *daemon) reload(cfg *config.Config) {
	d.agg.Replace(cfg.BuildChecks())
}

func (d *daemon) run(ctx context.Context, opts serveOptions) error {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := d.obs.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn(shutdownCtx, "observability shutdown failed", observe.F("error", err.Error()))
		}
	}()

	if opts.watch {
		w, err := config.NewWatcher(opts.configPath, func(cfg *config.Config) {
			opts.apply(cfg)
			d.reload(cfg)
		}, config.WithWatchLogger(d.logger))
		if err != nil {
			return err
		}
		go func() { _ = w.Run(ctx) }()
	}

	ln, err := net.Listen("tcp", d.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.cfg.Server.Addr, err)
	}
	return d.serve(ctx, ln)
}

func (d *daemon) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           d.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info(ctx, "healthd listening",
			observe.F("addr", ln.Addr().String()),
			observe.F("prefix", d.cfg.Server.Prefix),
			observe.F("checks", len(d.agg.Checks())),
		)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	d.logger.Info(ctx, "healthd shutting down")
	timeout := d.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

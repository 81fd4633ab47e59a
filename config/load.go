package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/healthreport/secret"
)

// Load reads, resolves and validates the configuration file at path.
func Load(ctx context.Context, path string, resolver *secret.Resolver) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(ctx, data, resolver)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, resolves environment variables and
// secret references in target fields, then validates. Unknown keys are
// rejected. A nil resolver uses secret.NewResolver().
func Parse(ctx context.Context, data []byte, resolver *secret.Resolver) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if resolver == nil {
		resolver = secret.NewResolver()
	}
	if err := cfg.resolve(ctx, resolver); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolve(ctx context.Context, r *secret.Resolver) error {
	if err := r.ResolveInPlace(ctx, &c.Application.Name, &c.Application.Version, &c.Server.Addr); err != nil {
		return fmt.Errorf("resolve server: %w", err)
	}

	for i := range c.Checks {
		cc := &c.Checks[i]
		if err := r.ResolveInPlace(ctx, &cc.URL, &cc.Address, &cc.Target, &cc.DSN); err != nil {
			return fmt.Errorf("resolve check %q: %w", cc.Name, err)
		}
		headers, err := r.ResolveMap(ctx, cc.Headers)
		if err != nil {
			return fmt.Errorf("resolve check %q headers: %w", cc.Name, err)
		}
		cc.Headers = headers
	}
	return nil
}

package secret

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const refPrefix = "secretref:"

// Resolver expands environment variables and secret references.
// The env and file providers are registered by default.
type Resolver struct {
	providers  map[string]Provider
	allowEmpty bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithProvider registers p, replacing any provider with the same name.
func WithProvider(p Provider) ResolverOption {
	return func(r *Resolver) {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
}

// WithAllowEmpty accepts references that resolve to "".
func WithAllowEmpty() ResolverOption {
	return func(r *Resolver) {
		r.allowEmpty = true
	}
}

// NewResolver creates a resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{providers: map[string]Provider{}}
	WithProvider(EnvProvider{})(r)
	WithProvider(FileProvider{})(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveValue expands the environment in value, then replaces every
// secret reference. A value holding exactly one reference, at its start,
// is resolved whole and its ref may contain spaces or slashes. Otherwise
// inline references end at whitespace or URL delimiters.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}

	switch strings.Count(expanded, refPrefix) {
	case 0:
		return expanded, nil
	case 1:
		if provider, ref, ok := ParseSecretRef(expanded); ok {
			return r.resolve(ctx, provider, ref)
		}
	}

	var firstErr error
	out := inlineRefPattern.ReplaceAllStringFunc(expanded, func(m string) string {
		if firstErr != nil {
			return m
		}
		provider, ref, _ := ParseSecretRef(m)
		v, err := r.resolve(ctx, provider, ref)
		if err != nil {
			firstErr = err
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ResolveInPlace resolves each non-empty target, stopping at the first
// failure. Targets are left unchanged when resolution fails.
func (r *Resolver) ResolveInPlace(ctx context.Context, targets ...*string) error {
	resolved := make([]string, len(targets))
	for i, t := range targets {
		if t == nil || *t == "" {
			continue
		}
		v, err := r.ResolveValue(ctx, *t)
		if err != nil {
			return err
		}
		resolved[i] = v
	}
	for i, t := range targets {
		if t != nil && *t != "" {
			*t = resolved[i]
		}
	}
	return nil
}

// ResolveMap resolves each value in input.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ParseSecretRef parses a full secret reference of the form:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

// inlineRefPattern matches a reference embedded in a longer value. The ref
// stops at whitespace or at the URL delimiters that commonly follow an
// embedded credential.
var inlineRefPattern = regexp.MustCompile(`secretref:[^:\s]+:[^\s@/?#]+`)

func (r *Resolver) resolve(ctx context.Context, providerName, ref string) (string, error) {
	p, ok := r.providers[providerName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
	}
	v, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("secret provider %q: %w", providerName, err)
	}
	if v == "" && !r.allowEmpty {
		return "", fmt.Errorf("%w: provider %q", ErrEmptySecret, providerName)
	}
	return v, nil
}

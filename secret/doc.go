// Package secret resolves secret references in configuration values.
//
// Values are first expanded against the environment (see ExpandEnvStrict),
// then any "secretref:<provider>:<ref>" reference is replaced by the value
// the named provider returns:
//
//	dsn: postgres://health:secretref:env:PG_PASSWORD@db:5432/app
//	token: secretref:file:/var/run/secrets/probe-token
//
// The env and file providers are always available. Other providers can be
// registered on a Resolver.
package secret

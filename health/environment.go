package health

import (
	"context"
	"os"
	"path"
	"runtime/debug"
	"time"
)

// processStart approximates process start time for uptime reporting.
var processStart = time.Now()

// Environment is the process metadata attached to every report.
// Missing values are left empty.
type Environment struct {
	ApplicationName    string
	ApplicationVersion string
	HostName           string
	Uptime             time.Duration
}

// EnvironmentProvider supplies report metadata at report time.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not fail; unknown values are left empty.
type EnvironmentProvider interface {
	Environment(ctx context.Context) Environment
}

// EnvironmentFunc adapts a function to EnvironmentProvider.
type EnvironmentFunc func(ctx context.Context) Environment

// Environment calls f.
func (f EnvironmentFunc) Environment(ctx context.Context) Environment {
	return f(ctx)
}

// StaticEnvironment returns the same metadata for every report.
func StaticEnvironment(env Environment) EnvironmentProvider {
	return EnvironmentFunc(func(context.Context) Environment {
		return env
	})
}

// ProcessEnvironment reports the given application name and version, the
// host name, and the time since process start. Empty name or version fall
// back to the main module's build information.
func ProcessEnvironment(name, version string) EnvironmentProvider {
	if info, ok := debug.ReadBuildInfo(); ok {
		if name == "" && info.Main.Path != "" {
			name = path.Base(info.Main.Path)
		}
		if version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}

	return EnvironmentFunc(func(context.Context) Environment {
		host, _ := os.Hostname()
		return Environment{
			ApplicationName:    name,
			ApplicationVersion: version,
			HostName:           host,
			Uptime:             time.Since(processStart),
		}
	})
}

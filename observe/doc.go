// Package observe provides observability primitives for health check execution.
//
// It is a pure instrumentation library: spans, metrics and structured logs
// for individual checks and whole reports. The health package wires a
// Middleware into its runner and aggregator; nothing here runs checks.
package observe

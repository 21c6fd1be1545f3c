// Package server provides the MCP server context and the HTTP plumbing
// around it.
//
// ServerContext owns the retrieval pipeline and the scratch store for the
// lifetime of the process. Shutdown cancels in-flight work and removes the
// scratch directory.
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed on the MCP
// HTTP mux. MetricsServer serves Prometheus metrics on a dedicated port so
// that operational data stays off the MCP endpoint.
package server

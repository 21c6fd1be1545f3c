// Package instrumentation provides OpenTelemetry metrics, tracing and
// audit logging for the mailpipe MCP server.
//
// # Metrics
//
// Upstream:
//   - google_api_operations_total: Gmail API operations by operation and status
//   - google_api_operation_duration_seconds: operation duration including retries
//   - google_api_retries_total: retried attempts by operation
//
// Tools and delivery:
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds
//   - content_deliveries_total: deliveries by operation and placement (inline, materialized)
//   - materialized_artifacts_total, materialized_bytes_total: scratch writes by kind
//   - render_problems_total: message parts that degraded to a placeholder
//
// Transport and auth:
//   - http_requests_total, http_request_duration_seconds (streamable-http only)
//   - oauth_auth_total, oauth_token_refresh_total
//
// A zero or nil *Metrics records nothing, so callers never need to check
// whether instrumentation is enabled.
//
// # Tracing
//
// Spans are named tool.<name> for tool calls and google.gmail.<op> for
// upstream calls.
//
// # Configuration
//
// Environment variables:
//   - INSTRUMENTATION_ENABLED: enable or disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces and metrics
//   - OTEL_TRACES_SAMPLER_ARG: sampling rate (default: 0.1)
//   - OTEL_SERVICE_NAME: service name (default: mailpipe)
package instrumentation

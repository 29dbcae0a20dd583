// Package tracing wraps OpenTelemetry so the gate protocol can emit one span
// per operation without the rest of the codebase importing the upstream
// packages. Instrumentation stays in its own package so applications that do
// not need it can leave it uninitialised – spans are then no-ops.
package tracing

// Package approval implements the protected-action approval protocol: a
// caller registers a pending request and receives a short-lived single-use
// code, a human relays the code together with a category phrase through
// Validate, and the original caller consumes the approval exactly once via
// CheckApproval. Expired requests are removed lazily whenever the registry is
// touched; no background sweeper runs.
package approval

// Package gatekeeper gates sensitive, irreversible actions behind explicit
// human sign-off. A caller registers a pending request for a (server, action)
// pair and receives a short-lived single-use code; a human relays the code
// together with the action's category phrase out-of-band; once validated, the
// approval satisfies exactly one CheckApproval call before it is removed.
//
// The top-level Service wires the approval registry, the durable audit
// ledger, the protection catalog and the lifecycle event queue together;
// every piece can also be used standalone.
package gatekeeper

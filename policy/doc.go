// Package policy holds the protection catalog: the static description of
// which (server, action) pairs are gated behind human approval and which
// phrase category a human must relay. The call-interception layer consults it
// before anything reaches the approval registry; the catalog itself never
// blocks or approves.
package policy

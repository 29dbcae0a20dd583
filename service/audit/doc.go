// Package audit mirrors the approval lifecycle into a durable, queryable
// decision queue so a human-facing surface can list pending gated actions
// without replaying registry state. Rows reuse a generic pending-decision
// shape shared with unrelated human-decision records and are disambiguated by
// a type discriminator; that reuse is a deliberate trade-off, not an
// accident. The ledger's answered transition is independent of the registry's
// approved/consumed transition – integrators mark an entry answered only
// after a registry validation succeeds, never before.
package audit

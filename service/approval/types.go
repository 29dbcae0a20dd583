package approval

import (
	"time"
)

// Request statuses. Terminal states are removal – a request is deleted on
// consumption or expiry, never parked in a "rejected" state; a failed
// validation leaves it pending and reusable until it expires.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// Standard event topics published on the registry queue.
const (
	TopicRequestCreated  = "request.created"
	TopicRequestApproved = "request.approved"
	TopicRequestConsumed = "request.consumed"
	TopicRequestExpired  = "request.expired"
)

// Request represents a pending or approved gate request, keyed by its code.
type Request struct {
	Code       string                 `json:"code"`
	Server     string                 `json:"server"`
	Action     string                 `json:"action"`
	Args       map[string]interface{} `json:"args,omitempty"`
	Phrase     string                 `json:"phrase"`
	Status     string                 `json:"status"`
	CreatedAt  time.Time              `json:"createdAt"`
	ApprovedAt *time.Time             `json:"approvedAt,omitempty"`
	ExpiresAt  time.Time              `json:"expiresAt"`
}

// Expired reports whether the request's deadline has passed. The deadline is
// fixed at creation and independent of status.
func (r *Request) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Redacted returns a copy safe for diagnostic listings: argument values are
// masked, everything else is preserved.
func (r *Request) Redacted() *Request {
	clone := *r
	if len(r.Args) > 0 {
		clone.Args = make(map[string]interface{}, len(r.Args))
		for k := range r.Args {
			clone.Args[k] = "***"
		}
	}
	return &clone
}

// Ticket is returned to the caller that created a request.
type Ticket struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
}

// Outcome is the result of a validation attempt. Valid=false carries a
// human-readable reason; storage failures surface as errors instead.
type Outcome struct {
	Valid  bool                   `json:"valid"`
	Reason string                 `json:"reason,omitempty"`
	Server string                 `json:"server,omitempty"`
	Action string                 `json:"action,omitempty"`
	Args   map[string]interface{} `json:"args,omitempty"`
}

// Event is the envelope published on the registry queue for every lifecycle
// transition.
type Event struct {
	Topic   string   `json:"topic"`
	Request *Request `json:"request"`
}

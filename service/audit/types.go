package audit

import (
	"context"
	"time"
)

// EntryType discriminates approval rows from other records sharing the
// decision queue.
const EntryType = "protected-action-request"

// Entry statuses. Answered is terminal here even though the registry keeps
// its own approved/consumed distinction.
const (
	StatusPending  = "pending"
	StatusAnswered = "answered"
)

// EntryContext carries the protocol payload of a ledger row.
type EntryContext struct {
	Code   string                 `json:"code"`
	Server string                 `json:"server"`
	Action string                 `json:"action"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Phrase string                 `json:"phrase"`
}

// Entry is one row of the generic decision queue.
type Entry struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Status      string       `json:"status"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Context     EntryContext `json:"context"`
	CreatedAt   time.Time    `json:"createdAt"`
	AnsweredAt  *time.Time   `json:"answeredAt,omitempty"`
}

// Ledger defines the durable mirror of the approval protocol.
type Ledger interface {
	// RecordPending appends a pending entry and returns its id.
	RecordPending(ctx context.Context, server, action string, args map[string]interface{}, code, phrase string) (string, error)

	// FindByCode returns the entry whose context carries the code, nil when
	// absent.
	FindByCode(ctx context.Context, code string) (*Entry, error)

	// MarkAnswered transitions an entry to answered.
	MarkAnswered(ctx context.Context, id string) error

	// ListPending returns all pending approval entries.
	ListPending(ctx context.Context) ([]*Entry, error)
}

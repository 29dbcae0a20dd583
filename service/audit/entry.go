package audit

import (
	"fmt"
	"strings"

	"github.com/viant/toolbox"

	"github.com/viant/gatekeeper/internal/clock"
	"github.com/viant/gatekeeper/internal/idgen"
)

// NewEntry builds a pending decision-queue entry for a gate request. Backends
// share it so every ledger produces identical rows.
func NewEntry(server, action string, args map[string]interface{}, code, phrase string) *Entry {
	if len(args) > 0 {
		args = toolbox.DeleteEmptyKeys(args)
	}
	return &Entry{
		ID:          idgen.New(),
		Type:        EntryType,
		Status:      StatusPending,
		Title:       fmt.Sprintf("Approval required: %s.%s", server, action),
		Description: fmt.Sprintf("Reply %s %s to approve", phrase, code),
		Context: EntryContext{
			Code:   strings.ToUpper(code),
			Server: server,
			Action: action,
			Args:   args,
			Phrase: phrase,
		},
		CreatedAt: clock.Now(),
	}
}

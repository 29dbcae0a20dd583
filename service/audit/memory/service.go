package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/viant/gatekeeper/internal/clock"
	"github.com/viant/gatekeeper/service/audit"
	"github.com/viant/gatekeeper/service/dao"
	"github.com/viant/gatekeeper/service/dao/store"
)

type service struct {
	entries dao.Service[string, audit.Entry]
}

func entryKey(e *audit.Entry) string { return e.ID }

// New creates an in-memory ledger, used by tests and single-run tooling.
func New() audit.Ledger {
	return &service{entries: store.NewMemoryStore[string, audit.Entry](entryKey)}
}

func (s *service) RecordPending(ctx context.Context, server, action string, args map[string]interface{}, code, phrase string) (string, error) {
	entry := audit.NewEntry(server, action, args, code, phrase)
	if err := s.entries.Save(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

func (s *service) FindByCode(ctx context.Context, code string) (*audit.Entry, error) {
	all, err := s.entries.List(ctx)
	if err != nil {
		return nil, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, entry := range all {
		if entry.Type == audit.EntryType && entry.Context.Code == code {
			return entry, nil
		}
	}
	return nil, nil
}

func (s *service) MarkAnswered(ctx context.Context, id string) error {
	entry, err := s.entries.Load(ctx, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("audit: entry %s: %w", id, dao.ErrNotFound)
	}
	now := clock.Now()
	entry.Status = audit.StatusAnswered
	entry.AnsweredAt = &now
	return s.entries.Save(ctx, entry)
}

func (s *service) ListPending(ctx context.Context) ([]*audit.Entry, error) {
	all, err := s.entries.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]*audit.Entry, 0, len(all))
	for _, entry := range all {
		if entry.Type == audit.EntryType && entry.Status == audit.StatusPending {
			pending = append(pending, entry)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return pending, nil
}

var _ audit.Ledger = (*service)(nil)

package bunledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/viant/gatekeeper/internal/clock"
	"github.com/viant/gatekeeper/service/audit"
	"github.com/viant/gatekeeper/service/dao"
)

// entryRecord maps an audit entry onto the shared decision_queue table. The
// protocol payload travels JSON-encoded in the context column; only the
// discriminator and status are first-class columns.
type entryRecord struct {
	bun.BaseModel `bun:"table:decision_queue"`

	ID          string `bun:",pk"`
	Type        string `bun:",notnull"`
	Status      string `bun:",notnull"`
	Title       string
	Description string
	Context     string     `bun:",type:text"`
	CreatedAt   time.Time  `bun:",nullzero,notnull,default:current_timestamp"`
	AnsweredAt  *time.Time `bun:",nullzero"`
}

// Service is the bun-backed ledger, intended for SQLite in single-host
// deployments.
type Service struct {
	db *bun.DB
}

// New creates a bun-backed ledger.
func New(db *bun.DB) *Service {
	return &Service{db: db}
}

// EnsureSchema creates the decision queue table when absent.
func (s *Service) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*entryRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *Service) RecordPending(ctx context.Context, server, action string, args map[string]interface{}, code, phrase string) (string, error) {
	entry := audit.NewEntry(server, action, args, code, phrase)
	record, err := toRecord(entry)
	if err != nil {
		return "", err
	}
	if _, err = s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return "", fmt.Errorf("audit: failed to insert entry: %w", err)
	}
	return entry.ID, nil
}

// FindByCode scans approval rows and matches the code inside the context
// payload; the shared table deliberately has no code column.
func (s *Service) FindByCode(ctx context.Context, code string) (*audit.Entry, error) {
	var records []entryRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("type = ?", audit.EntryType).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	for i := range records {
		entry, err := fromRecord(&records[i])
		if err != nil {
			return nil, err
		}
		if entry.Context.Code == code {
			return entry, nil
		}
	}
	return nil, nil
}

func (s *Service) MarkAnswered(ctx context.Context, id string) error {
	now := clock.Now()
	result, err := s.db.NewUpdate().
		Model((*entryRecord)(nil)).
		Set("status = ?", audit.StatusAnswered).
		Set("answered_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("audit: failed to update entry %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("audit: entry %s: %w", id, dao.ErrNotFound)
	}
	return nil
}

func (s *Service) ListPending(ctx context.Context) ([]*audit.Entry, error) {
	var records []entryRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("type = ? AND status = ?", audit.EntryType, audit.StatusPending).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	entries := make([]*audit.Entry, 0, len(records))
	for i := range records {
		entry, err := fromRecord(&records[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func toRecord(entry *audit.Entry) (*entryRecord, error) {
	context, err := json.Marshal(entry.Context)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to marshal context: %w", err)
	}
	return &entryRecord{
		ID:          entry.ID,
		Type:        entry.Type,
		Status:      entry.Status,
		Title:       entry.Title,
		Description: entry.Description,
		Context:     string(context),
		CreatedAt:   entry.CreatedAt,
		AnsweredAt:  entry.AnsweredAt,
	}, nil
}

func fromRecord(record *entryRecord) (*audit.Entry, error) {
	entry := &audit.Entry{
		ID:          record.ID,
		Type:        record.Type,
		Status:      record.Status,
		Title:       record.Title,
		Description: record.Description,
		CreatedAt:   record.CreatedAt,
		AnsweredAt:  record.AnsweredAt,
	}
	if record.Context != "" {
		if err := json.Unmarshal([]byte(record.Context), &entry.Context); err != nil {
			return nil, fmt.Errorf("audit: malformed context in entry %s: %w", record.ID, err)
		}
	}
	return entry, nil
}

var _ audit.Ledger = (*Service)(nil)

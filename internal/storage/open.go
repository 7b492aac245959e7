package storage

import (
	"context"
	"errors"
	"strings"

	logx "recurd/pkg/logx"
)

// Store is the persistence API used by the scheduler and the CLI.
type Store interface {
	// PutTrigger inserts or replaces the record with the same name.
	// CreatedAt of an existing record is preserved.
	PutTrigger(ctx context.Context, rec TriggerRecord) error
	GetTrigger(ctx context.Context, name string) (TriggerRecord, error)
	// ListTriggers returns all records ordered by name.
	ListTriggers(ctx context.Context) ([]TriggerRecord, error)
	DeleteTrigger(ctx context.Context, name string) (bool, error)
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

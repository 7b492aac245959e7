package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("storage: not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON snapshot + JSONL journal/audit files
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// TriggerRecord is the persisted form of a registered trigger.
// String fields are opaque to the store.
type TriggerRecord struct {
	Name       string    `json:"name"`
	Expr       string    `json:"expr"`
	DayOfMonth string    `json:"day_of_month"`
	DayOfWeek  string    `json:"day_of_week"`
	Timezone   string    `json:"timezone,omitempty"`
	Owner      string    `json:"owner,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AuditEntry records a change to the trigger set.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Detail string    `json:"detail,omitempty"`
	Error  string    `json:"error,omitempty"`
}

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "recurd/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor, action, target, detail, err) VALUES(?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.Actor, e.Action, e.Target, nullStr(e.Detail), nullStr(e.Error),
	)
	return err
}

func (s *sqliteStore) PutTrigger(ctx context.Context, rec TriggerRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if strings.TrimSpace(rec.Name) == "" {
		return errors.New("trigger name required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	// created_at is left untouched on conflict.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO triggers(name, expr, day_of_month, day_of_week, timezone, owner, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET
		   expr=excluded.expr,
		   day_of_month=excluded.day_of_month,
		   day_of_week=excluded.day_of_week,
		   timezone=excluded.timezone,
		   owner=excluded.owner,
		   updated_at=excluded.updated_at`,
		rec.Name, rec.Expr, rec.DayOfMonth, rec.DayOfWeek, rec.Timezone, rec.Owner,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	return err
}

func (s *sqliteStore) GetTrigger(ctx context.Context, name string) (TriggerRecord, error) {
	if s == nil || s.db == nil {
		return TriggerRecord{}, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT name, expr, day_of_month, day_of_week, timezone, owner, created_at, updated_at
		 FROM triggers WHERE name=?`, name)
	rec, err := scanTrigger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TriggerRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *sqliteStore) ListTriggers(ctx context.Context) ([]TriggerRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, expr, day_of_month, day_of_week, timezone, owner, created_at, updated_at
		 FROM triggers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TriggerRecord
	for rows.Next() {
		rec, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteTrigger(ctx context.Context, name string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM triggers WHERE name=?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrigger(r rowScanner) (TriggerRecord, error) {
	var (
		rec              TriggerRecord
		created, updated string
	)
	if err := r.Scan(&rec.Name, &rec.Expr, &rec.DayOfMonth, &rec.DayOfWeek, &rec.Timezone, &rec.Owner, &created, &updated); err != nil {
		return TriggerRecord{}, err
	}
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

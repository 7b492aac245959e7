package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	logx "recurd/pkg/logx"
)

const compactEvery = 256

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.audit.jsonl              (append-only JSON Lines)
//   - <prefix>.triggers.snapshot.json   (periodic snapshot)
//   - <prefix>.triggers.journal.jsonl   (append-only journal)
//
// The journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	auditFile *os.File

	snapshotPath string
	journalFile  *os.File
	triggers     map[string]TriggerRecord

	writes int
}

type journalRecord struct {
	Op      string         `json:"op"` // "put" | "del"
	Name    string         `json:"name"`
	Trigger *TriggerRecord `json:"trigger,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	auditPath := prefix + ".audit.jsonl"
	snapPath := prefix + ".triggers.snapshot.json"
	journalPath := prefix + ".triggers.journal.jsonl"

	af, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	triggers := map[string]TriggerRecord{}
	if err := loadSnapshot(snapPath, triggers); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("trigger snapshot unreadable; starting from journal", logx.String("path", snapPath), logx.Err(err))
	}
	if err := replayJournal(journalPath, triggers); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("trigger journal replay incomplete", logx.String("path", journalPath), logx.Err(err))
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = af.Close()
		return nil, err
	}

	log.Debug("file store opened", logx.String("prefix", prefix), logx.Int("triggers", len(triggers)))
	return &fileStore{
		log:          log,
		auditFile:    af,
		snapshotPath: snapPath,
		journalFile:  jf,
		triggers:     triggers,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile != nil {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("trigger compact on close failed", logx.Err(err))
		}
	}
	var err1, err2 error
	if s.auditFile != nil {
		err1 = s.auditFile.Close()
		s.auditFile = nil
	}
	if s.journalFile != nil {
		err2 = s.journalFile.Close()
		s.journalFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) PutTrigger(ctx context.Context, rec TriggerRecord) error {
	_ = ctx
	if strings.TrimSpace(rec.Name) == "" {
		return errors.New("trigger name required")
	}
	now := time.Now()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("trigger journal closed")
	}
	if prev, ok := s.triggers[rec.Name]; ok && !prev.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	prev, had := s.triggers[rec.Name]
	s.triggers[rec.Name] = rec
	if err := s.appendLocked(journalRecord{Op: "put", Name: rec.Name, Trigger: &rec}); err != nil {
		if had {
			s.triggers[rec.Name] = prev
		} else {
			delete(s.triggers, rec.Name)
		}
		return err
	}
	return nil
}

func (s *fileStore) GetTrigger(ctx context.Context, name string) (TriggerRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.triggers[name]
	if !ok {
		return TriggerRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *fileStore) ListTriggers(ctx context.Context) ([]TriggerRecord, error) {
	_ = ctx
	s.mu.Lock()
	out := make([]TriggerRecord, 0, len(s.triggers))
	for _, rec := range s.triggers {
		out = append(out, rec)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fileStore) DeleteTrigger(ctx context.Context, name string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.triggers[name]
	if !ok {
		return false, nil
	}
	if s.journalFile == nil {
		return false, errors.New("trigger journal closed")
	}
	delete(s.triggers, name)
	if err := s.appendLocked(journalRecord{Op: "del", Name: name}); err != nil {
		s.triggers[name] = prev
		return false, err
	}
	return true, nil
}

// appendLocked writes one journal record. The change must already be
// applied to s.triggers, since a compaction snapshots the map and truncates
// the journal. Call with s.mu held.
func (s *fileStore) appendLocked(r journalRecord) error {
	if err := json.NewEncoder(s.journalFile).Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("trigger compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.triggers); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, io.SeekEnd)
	return err
}

func loadSnapshot(path string, out map[string]TriggerRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]TriggerRecord
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayJournal(path string, out map[string]TriggerRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// torn tail write
			continue
		}
		switch r.Op {
		case "put":
			if r.Trigger != nil && r.Trigger.Name != "" {
				out[r.Trigger.Name] = *r.Trigger
			}
		case "del":
			delete(out, r.Name)
		}
	}
	return sc.Err()
}

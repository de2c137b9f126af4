package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "timerbot/pkg/logx"
)

// fileStore appends audit entries to <prefix>.audit.jsonl.
type fileStore struct {
	log logx.Logger

	mu        sync.Mutex
	path      string
	auditFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	auditPath := filepath.Join(dir, base) + ".audit.jsonl"
	af, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	log.Debug("file storage opened", logx.String("path", auditPath))
	return &fileStore{log: log, path: auditPath, auditFile: af}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrDisabled
	}
	_, err = s.auditFile.Write(b)
	return err
}

func (s *fileStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAllLocked(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]AuditEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *fileStore) PruneAudit(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return 0, ErrDisabled
	}

	all, err := s.readAllLocked(ctx)
	if err != nil {
		return 0, err
	}
	keep := all[:0]
	for _, e := range all {
		if !e.At.Before(before) {
			keep = append(keep, e)
		}
	}
	removed := len(all) - len(keep)
	if removed == 0 {
		return 0, nil
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range keep {
		if err := enc.Encode(e); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return 0, err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	_ = s.auditFile.Close()
	if err := os.Rename(tmp, s.path); err != nil {
		s.auditFile = nil
		return 0, err
	}
	af, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.auditFile = nil
		return 0, err
	}
	s.auditFile = af
	return removed, nil
}

func (s *fileStore) readAllLocked(ctx context.Context) ([]AuditEntry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []AuditEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			// Torn tail write after a crash.
			s.log.Debug("skipping bad audit line", logx.Err(err))
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

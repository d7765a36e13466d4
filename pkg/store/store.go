// Package store is the console's durable record keeper: append-only JSONL
// logs per account for custody events and device command audits, plus the
// evidence record mirror the purge planner works against. Custody logs are
// never rewritten; evidence records are removed only through DeleteRecord,
// which the purge executor calls.
package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lucid-vigil/warden/pkg/custody"
	"github.com/lucid-vigil/warden/pkg/evidence"
	"github.com/rs/zerolog"
)

const (
	custodyLog = "custody.log"
	auditLog   = "audits.log"
	recordLog  = "records.log"
)

// Store keeps one directory per account under dataDir. The custody tail per
// evidence chain is held in memory so appends always link to the latest
// event without re-reading the log.
type Store struct {
	mu      sync.Mutex
	dataDir string
	logger  zerolog.Logger
	tails   map[string]map[string]custody.Event // account -> evidence id -> last event
}

// New opens (or creates) the store rooted at dataDir and rebuilds the
// custody tails from the existing logs.
func New(dataDir string, logger zerolog.Logger) (*Store, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dataDir, err)
	}
	s := &Store{
		dataDir: dataDir,
		logger:  logger.With().Str("component", "store").Logger(),
		tails:   make(map[string]map[string]custody.Event),
	}
	if err := s.loadTails(); err != nil {
		return nil, err
	}
	return s, nil
}

// AppendCustody links partial to the tail of its evidence chain, computes
// its hashes and writes it durably. The returned event is the completed
// chain entry.
func (s *Store) AppendCustody(accountID string, partial custody.Event) (custody.Event, error) {
	if accountID == "" || partial.EvidenceID == "" {
		return custody.Event{}, fmt.Errorf("store: custody append needs account and evidence ids")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *custody.Event
	if tail, ok := s.tails[accountID][partial.EvidenceID]; ok {
		prev = &tail
	}
	ev, err := custody.Append(prev, partial)
	if err != nil {
		return custody.Event{}, err
	}

	if err := s.appendLine(accountID, custodyLog, ev); err != nil {
		return custody.Event{}, err
	}
	if s.tails[accountID] == nil {
		s.tails[accountID] = make(map[string]custody.Event)
	}
	s.tails[accountID][partial.EvidenceID] = ev
	return ev, nil
}

// CustodyChain returns the chain for one evidence record in append order.
func (s *Store) CustodyChain(accountID, evidenceID string) ([]custody.Event, error) {
	var out []custody.Event
	err := s.scan(accountID, custodyLog, func(line []byte) error {
		var ev custody.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("store: decode custody event: %w", err)
		}
		if ev.EvidenceID == evidenceID {
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

// CustodyByIncident returns every custody event tagged with the incident,
// in append order.
func (s *Store) CustodyByIncident(accountID, incidentID string) ([]custody.Event, error) {
	var out []custody.Event
	err := s.scan(accountID, custodyLog, func(line []byte) error {
		var ev custody.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("store: decode custody event: %w", err)
		}
		if ev.IncidentID == incidentID {
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

// AppendAudit records one device command outcome.
func (s *Store) AppendAudit(accountID string, audit evidence.CommandAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLine(accountID, auditLog, audit)
}

// AuditsByIncident returns the command audits for an incident in append order.
func (s *Store) AuditsByIncident(accountID, incidentID string) ([]evidence.CommandAudit, error) {
	var out []evidence.CommandAudit
	err := s.scan(accountID, auditLog, func(line []byte) error {
		var a evidence.CommandAudit
		if err := json.Unmarshal(line, &a); err != nil {
			return fmt.Errorf("store: decode audit: %w", err)
		}
		if a.IncidentID == incidentID {
			out = append(out, a)
		}
		return nil
	})
	return out, err
}

// AppendRecord mirrors a captured evidence record locally.
func (s *Store) AppendRecord(accountID string, rec evidence.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLine(accountID, recordLog, rec)
}

// ListRecords returns every evidence record for the account.
func (s *Store) ListRecords(ctx context.Context, accountID string) ([]evidence.Record, error) {
	var out []evidence.Record
	err := s.scan(accountID, recordLog, func(line []byte) error {
		var rec evidence.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("store: decode record: %w", err)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// Accounts lists every account with stored data.
func (s *Store) Accounts() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, entry.Name())
		}
	}
	return out, nil
}

// DeleteRecord removes one evidence record. This is the deletion
// collaborator handed to purge execution; custody and audit logs are never
// touched by it.
func (s *Store) DeleteRecord(ctx context.Context, accountID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.listLocked(accountID)
	if err != nil {
		return err
	}
	kept := records[:0]
	found := false
	for _, rec := range records {
		if rec.ID == recordID {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return fmt.Errorf("store: record %s not found", recordID)
	}

	path := filepath.Join(s.dataDir, accountID, recordLog)
	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	for _, rec := range kept {
		if err := enc.Encode(rec); err != nil {
			file.Close()
			return err
		}
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) listLocked(accountID string) ([]evidence.Record, error) {
	var out []evidence.Record
	err := s.scan(accountID, recordLog, func(line []byte) error {
		var rec evidence.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("store: decode record: %w", err)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *Store) appendLine(accountID, name string, v interface{}) error {
	dir := filepath.Join(s.dataDir, accountID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (s *Store) scan(accountID, name string, fn func(line []byte) error) error {
	path := filepath.Join(s.dataDir, accountID, name)
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 5*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Store) loadTails() error {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		accountID := entry.Name()
		err := s.scan(accountID, custodyLog, func(line []byte) error {
			var ev custody.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				return fmt.Errorf("store: decode custody event: %w", err)
			}
			if s.tails[accountID] == nil {
				s.tails[accountID] = make(map[string]custody.Event)
			}
			s.tails[accountID][ev.EvidenceID] = ev
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

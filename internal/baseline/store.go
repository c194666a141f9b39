// Package baseline persists the statistics of past comparison runs so later
// runs can be checked for regressions against them.
package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fractal-lba/nlueval/internal/eval"
)

// Record is the stored statistics of one run, keyed by build id.
type Record struct {
	ID         string                          `json:"id"`
	Label      string                          `json:"label,omitempty"`
	CreatedAt  time.Time                       `json:"createdAt"`
	Statistics map[string]eval.ScopeStatistics `json:"statistics"`
}

// NewRecord captures a run result as a baseline record.
func NewRecord(result *eval.RunResult) *Record {
	return &Record{
		ID:         result.RunID,
		Label:      result.TestLabel,
		CreatedAt:  time.Now().UTC(),
		Statistics: result.Statistics,
	}
}

// Snapshot converts the record to the form the comparator consumes.
func (r *Record) Snapshot() *eval.BaselineSnapshot {
	return &eval.BaselineSnapshot{ID: r.ID, Statistics: r.Statistics}
}

// Store persists baseline records
type Store interface {
	// Get retrieves a record by build id. Returns nil if not found.
	Get(ctx context.Context, id string) (*Record, error)

	// Latest retrieves the most recently stored record for a test label.
	// Returns nil if none exists.
	Latest(ctx context.Context, label string) (*Record, error)

	// Put stores a record. A ttl of zero keeps it forever. First write wins:
	// a build's baseline is never replaced.
	Put(ctx context.Context, rec *Record, ttl time.Duration) error

	// Close releases resources
	Close() error
}

// MemoryStore is an in-memory baseline store with optional file snapshot
type MemoryStore struct {
	mu       sync.RWMutex
	store    map[string]*entry
	latest   map[string]string // label -> id
	snapshot string            // optional file path for persistence
}

type entry struct {
	Record    *Record   `json:"record"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

func (e *entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// NewMemoryStore creates an in-memory store. When snapshotPath is set, the
// store loads it on start and rewrites it after every Put.
func NewMemoryStore(snapshotPath string) (*MemoryStore, error) {
	ms := &MemoryStore{
		store:    make(map[string]*entry),
		latest:   make(map[string]string),
		snapshot: snapshotPath,
	}

	if snapshotPath != "" {
		if err := ms.loadSnapshot(); err != nil {
			return nil, err
		}
	}

	return ms, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.store[id]
	if !ok || e.expired(time.Now()) {
		return nil, nil
	}
	return e.Record, nil
}

func (m *MemoryStore) Latest(ctx context.Context, label string) (*Record, error) {
	m.mu.RLock()
	id, ok := m.latest[label]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return m.Get(ctx, id)
}

func (m *MemoryStore) Put(ctx context.Context, rec *Record, ttl time.Duration) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("baseline record requires an id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if e, exists := m.store[rec.ID]; exists && !e.expired(now) {
		return nil
	}

	e := &entry{Record: rec}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	m.store[rec.ID] = e
	m.latest[rec.Label] = rec.ID

	if m.snapshot != "" {
		return m.saveSnapshotLocked()
	}
	return nil
}

func (m *MemoryStore) Close() error {
	if m.snapshot == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveSnapshotLocked()
}

type snapshotFile struct {
	Entries map[string]*entry `json:"entries"`
	Latest  map[string]string `json:"latest"`
}

func (m *MemoryStore) loadSnapshot() error {
	data, err := os.ReadFile(m.snapshot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no snapshot yet
		}
		return err
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Only load non-expired entries
	now := time.Now()
	for k, v := range snap.Entries {
		if v != nil && v.Record != nil && !v.expired(now) {
			m.store[k] = v
		}
	}
	for label, id := range snap.Latest {
		if _, ok := m.store[id]; ok {
			m.latest[label] = id
		}
	}

	return nil
}

// saveSnapshotLocked requires m.mu to be held.
func (m *MemoryStore) saveSnapshotLocked() error {
	now := time.Now()
	snap := snapshotFile{
		Entries: make(map[string]*entry),
		Latest:  m.latest,
	}
	for k, v := range m.store {
		if !v.expired(now) {
			snap.Entries[k] = v
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.snapshot, data, 0600)
}

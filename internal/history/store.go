// Package history keeps the newest-first log of completed swaps, capped at
// Capacity entries and persisted in full after every change.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	// StorageKey is the single key the whole history is stored under.
	StorageKey = "kimixchange_history"
	// Capacity is the maximum number of records kept.
	Capacity = 20
)

// Backend is a durable key-value slot. Get reports found=false for a key
// that was never written.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
}

// Store is the in-process view of the persisted history. It is safe for
// concurrent use; writes are last-write-wins against the backend.
type Store struct {
	backend Backend
	key     string
	shared  bool

	mu      sync.Mutex
	loaded  bool
	records []Record
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKey overrides StorageKey.
func WithKey(key string) StoreOption {
	return func(s *Store) { s.key = key }
}

// WithSharedBackend makes every Load and Append re-read the backend first.
// Use it when several processes write the same key.
func WithSharedBackend() StoreOption {
	return func(s *Store) { s.shared = true }
}

// NewStore creates a Store over b. Nothing is read until Load or Append.
func NewStore(b Backend, opts ...StoreOption) *Store {
	s := &Store{backend: b, key: StorageKey}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the persisted history. Backend and parse failures are logged
// and yield an empty history; Load never fails. A failed read is retried on
// the next call.
func (s *Store) Load(ctx context.Context) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return nil
	}
	return slices.Clone(s.records)
}

// loadLocked refreshes the cache from the backend. A backend error leaves
// the cache untouched and the store unloaded.
func (s *Store) loadLocked(ctx context.Context) error {
	if s.loaded && !s.shared {
		return nil
	}
	records, err := s.read(ctx)
	if err != nil {
		log.Error().Err(err).Str("key", s.key).Msg("Failed to read history")
		return err
	}
	s.loaded = true
	s.records = records
	return nil
}

// read fetches and parses the stored list. Only backend errors are
// returned; unparseable content is logged and treated as empty.
func (s *Store) read(ctx context.Context) ([]Record, error) {
	raw, found, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if !found || len(raw) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		log.Error().Err(err).Str("key", s.key).Int("bytes", len(raw)).Msg("Failed to parse history; starting empty")
		return nil, nil
	}
	if len(records) > Capacity {
		log.Warn().Int("count", len(records)).Int("capacity", Capacity).Msg("Persisted history over capacity; truncating")
		records = records[:Capacity]
	}
	log.Debug().Str("key", s.key).Int("count", len(records)).Msg("History loaded")
	return records, nil
}

// Append prepends rec, truncates to Capacity and persists the full list.
// The returned slice is what was written. If the write fails the in-memory
// history still includes rec and the error is returned alongside it.
// If the current history cannot be read, nothing is written and the read
// error is returned with a nil slice.
func (s *Store) Append(ctx context.Context, rec Record) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return nil, err
	}

	next := make([]Record, 0, min(len(s.records)+1, Capacity))
	next = append(next, rec)
	next = append(next, s.records[:min(len(s.records), Capacity-1)]...)
	s.records = next

	out := slices.Clone(next)
	raw, err := json.Marshal(next)
	if err != nil {
		return out, fmt.Errorf("marshal history: %w", err)
	}
	if err := s.backend.Put(ctx, s.key, raw); err != nil {
		log.Error().Err(err).Str("key", s.key).Str("id", rec.ID).Msg("Failed to persist history")
		return out, fmt.Errorf("persist history: %w", err)
	}

	log.Info().Str("id", rec.ID).Int("count", len(next)).Int("bytes", len(raw)).Msg("History record appended")
	return out, nil
}

// Records returns the cached history without touching the backend.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// Get finds a record by ID in the cached history.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

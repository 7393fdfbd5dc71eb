package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var errNotInitialized = errors.New("store is not initialized")

// MemoryStore keeps encoded records in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	records     map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.records = make(map[string][]byte)
	return nil
}

// SaveResult stores an encoded copy so later changes to record do not leak in.
func (s *MemoryStore) SaveResult(_ context.Context, record Record) error {
	payload, err := EncodeRecord(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.records[record.ID] = payload
	return nil
}

func (s *MemoryStore) GetResult(_ context.Context, id string) (Record, bool, error) {
	s.mu.RLock()
	payload, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false, nil
	}

	record, err := DecodeRecord(payload)
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

func (s *MemoryStore) ListResults(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, payload := range s.records {
		record, err := DecodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SavedAt.Before(out[j].SavedAt)
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

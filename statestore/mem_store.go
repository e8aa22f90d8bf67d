package statestore

import "sync"

// MemStore keeps task records in memory only (no persistence).
// Used by tests and ephemeral runs.
type MemStore struct {
	records map[string]Record
	mu      sync.Mutex
}

// NewMemStore creates an in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]Record),
	}
}

// Put overwrites the record for taskName.
func (s *MemStore) Put(taskName string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.TaskName = taskName
	s.records[taskName] = rec
	return nil
}

// Get returns the record for taskName.
func (s *MemStore) Get(taskName string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[taskName]
	return rec, ok, nil
}

// All returns a copy of every stored record.
func (s *MemStore) All() (map[string]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Record, len(s.records))
	for name, rec := range s.records {
		out[name] = rec
	}
	return out, nil
}

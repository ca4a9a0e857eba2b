package consent

import (
	"context"
	"sync"

	id "custodia/pkg/domain"
)

type currentKey struct {
	subject id.SubjectID
	purpose id.ConsentPurpose
}

// InMemoryStore keeps the ledger per subject plus a current-consent
// projection so Get stays O(1) over long histories.
type InMemoryStore struct {
	mu      sync.RWMutex
	history map[id.SubjectID][]Record
	current map[currentKey]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		history: make(map[id.SubjectID][]Record),
		current: make(map[currentKey]Record),
	}
}

func (s *InMemoryStore) Append(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[record.SubjectID] = append(s.history[record.SubjectID], record)
	s.current[currentKey{record.SubjectID, record.Purpose}] = record
	return nil
}

func (s *InMemoryStore) Current(_ context.Context, subjectID id.SubjectID, purpose id.ConsentPurpose) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.current[currentKey{subjectID, purpose}]
	if !ok {
		return nil, nil
	}
	cp := record
	return &cp, nil
}

func (s *InMemoryStore) History(_ context.Context, subjectID id.SubjectID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record(nil), s.history[subjectID]...), nil
}

func (s *InMemoryStore) RedactMetadata(_ context.Context, subjectID id.SubjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.history[subjectID]
	for i := range records {
		records[i].Origin = ""
		records[i].ClientSignature = ""
	}
	for key, record := range s.current {
		if key.subject == subjectID {
			record.Origin = ""
			record.ClientSignature = ""
			s.current[key] = record
		}
	}
	return len(records), nil
}

func (s *InMemoryStore) DeleteBySubject(_ context.Context, subjectID id.SubjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history[subjectID])
	delete(s.history, subjectID)
	for key := range s.current {
		if key.subject == subjectID {
			delete(s.current, key)
		}
	}
	return n, nil
}

type memorySnapshot struct {
	history map[id.SubjectID][]Record
	current map[currentKey]Record
}

// Snapshot returns a deep copy of the ledger for transactional rollback.
func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := memorySnapshot{
		history: make(map[id.SubjectID][]Record, len(s.history)),
		current: make(map[currentKey]Record, len(s.current)),
	}
	for k, v := range s.history {
		snap.history[k] = append([]Record(nil), v...)
	}
	for k, v := range s.current {
		snap.current[k] = v
	}
	return snap
}

// Restore replaces the ledger with a previously taken snapshot.
func (s *InMemoryStore) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := state.(memorySnapshot)
	s.history = snap.history
	s.current = snap.current
}

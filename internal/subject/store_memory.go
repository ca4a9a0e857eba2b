package subject

import (
	"context"
	"sync"
	"time"

	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemoryStore keeps subjects in process memory. It participates in
// MemoryRunner transactions via Snapshot/Restore.
type InMemoryStore struct {
	mu       sync.RWMutex
	subjects map[id.SubjectID]*Subject
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{subjects: make(map[id.SubjectID]*Subject)}
}

func (s *InMemoryStore) Save(_ context.Context, subj *Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *subj
	cp.UpdatedAt = time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = cp.UpdatedAt
	}
	s.subjects[subj.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, subjectID id.SubjectID) (*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subj, ok := s.subjects[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *subj
	return &cp, nil
}

func (s *InMemoryStore) SetVerified(_ context.Context, subjectID id.SubjectID, verifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	subj, ok := s.subjects[subjectID]
	if !ok {
		return sentinel.ErrNotFound
	}
	subj.Verified = true
	subj.VerifiedAt = &verifiedAt
	subj.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, subjectID id.SubjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[subjectID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.subjects, subjectID)
	return nil
}

// Snapshot returns a deep copy of the subject map for transactional rollback.
func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[id.SubjectID]*Subject, len(s.subjects))
	for k, v := range s.subjects {
		c := *v
		cp[k] = &c
	}
	return cp
}

// Restore replaces the subject map with a previously taken snapshot.
func (s *InMemoryStore) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = state.(map[id.SubjectID]*Subject)
}

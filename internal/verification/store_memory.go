package verification

import (
	"context"
	"sort"
	"sync"
	"time"

	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemoryStore keeps verification requests in process memory with a
// pending-by-subject index standing in for the partial unique constraint the
// postgres store relies on. It participates in MemoryRunner transactions via
// Snapshot/Restore.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.VerificationID]*Request
	pending  map[id.SubjectID]id.VerificationID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[id.VerificationID]*Request),
		pending:  make(map[id.SubjectID]id.VerificationID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, open := s.pending[req.SubjectID]; open {
		return sentinel.ErrConflict
	}
	cp := *req
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.requests[req.ID] = &cp
	s.pending[req.SubjectID] = req.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, verificationID id.VerificationID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[verificationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *InMemoryStore) FindPendingBySubject(_ context.Context, subjectID id.SubjectID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	verificationID, ok := s.pending[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.requests[verificationID]
	return &cp, nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, req := range s.requests {
		if req.SubjectID == subjectID {
			cp := *req
			out = append(out, &cp)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *InMemoryStore) MarkReviewed(_ context.Context, verificationID id.VerificationID, status id.VerificationStatus, reviewerID, rejectionReason string, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[verificationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if req.Status != id.VerificationStatusPending {
		return sentinel.ErrInvalidState
	}
	req.Status = status
	req.ReviewerID = reviewerID
	req.RejectionReason = rejectionReason
	at := reviewedAt
	req.ReviewedAt = &at
	req.UpdatedAt = time.Now()
	delete(s.pending, req.SubjectID)
	return nil
}

func (s *InMemoryStore) MarkExpired(_ context.Context, verificationID id.VerificationID, expiredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[verificationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if req.Status != id.VerificationStatusApproved {
		return sentinel.ErrInvalidState
	}
	req.Status = id.VerificationStatusExpired
	req.UpdatedAt = expiredAt
	return nil
}

func (s *InMemoryStore) MarkWarned(_ context.Context, verificationID id.VerificationID, warnedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[verificationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	at := warnedAt
	req.WarnedAt = &at
	return nil
}

func (s *InMemoryStore) ListApprovedReviewedBetween(_ context.Context, from, to time.Time) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, req := range s.requests {
		if req.Status != id.VerificationStatusApproved || req.ReviewedAt == nil {
			continue
		}
		if req.ReviewedAt.After(from) && !req.ReviewedAt.After(to) {
			cp := *req
			out = append(out, &cp)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *InMemoryStore) ListApprovedReviewedBefore(_ context.Context, cutoff time.Time) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, req := range s.requests {
		if req.Status != id.VerificationStatusApproved || req.ReviewedAt == nil {
			continue
		}
		if !req.ReviewedAt.After(cutoff) {
			cp := *req
			out = append(out, &cp)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *InMemoryStore) RedactDocumentNumbers(_ context.Context, subjectID id.SubjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, req := range s.requests {
		if req.SubjectID == subjectID {
			req.DocumentNumber = ""
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) DeleteBySubject(_ context.Context, subjectID id.SubjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for verificationID, req := range s.requests {
		if req.SubjectID == subjectID {
			delete(s.requests, verificationID)
			n++
		}
	}
	delete(s.pending, subjectID)
	return n, nil
}

type memorySnapshot struct {
	requests map[id.VerificationID]*Request
	pending  map[id.SubjectID]id.VerificationID
}

// Snapshot returns a deep copy of store state for transactional rollback.
func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := memorySnapshot{
		requests: make(map[id.VerificationID]*Request, len(s.requests)),
		pending:  make(map[id.SubjectID]id.VerificationID, len(s.pending)),
	}
	for k, v := range s.requests {
		cp := *v
		snap.requests[k] = &cp
	}
	for k, v := range s.pending {
		snap.pending[k] = v
	}
	return snap
}

// Restore replaces store state with a previously taken snapshot.
func (s *InMemoryStore) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := state.(memorySnapshot)
	s.requests = snap.requests
	s.pending = snap.pending
}

func sortByCreatedAt(reqs []*Request) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}

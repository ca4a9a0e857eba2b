//go:build integration

package verification_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/verification"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *verification.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = verification.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "verification_requests"))
}

func newPendingRequest(subjectID id.SubjectID) *verification.Request {
	return &verification.Request{
		ID:             id.NewVerificationID(),
		SubjectID:      subjectID,
		Kind:           id.DocumentKindPassport,
		DocumentNumber: "AB123456",
		FrontKey:       "front",
		SelfieKey:      "selfie",
		Status:         id.VerificationStatusPending,
	}
}

// TestConcurrentCreate verifies the partial unique index admits exactly one
// open request per subject under concurrent submissions.
func (s *PostgresStoreSuite) TestConcurrentCreate() {
	ctx := context.Background()
	subjectID := id.NewSubjectID()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newPendingRequest(subjectID))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

// TestConcurrentReview verifies the conditional status update lets exactly
// one reviewer finalize a pending request.
func (s *PostgresStoreSuite) TestConcurrentReview() {
	ctx := context.Background()
	req := newPendingRequest(id.NewSubjectID())
	s.Require().NoError(s.store.Create(ctx, req))

	const reviewers = 10
	var wg sync.WaitGroup
	var winCount, loseCount atomic.Int32

	for i := range reviewers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := id.VerificationStatusApproved
			reason := ""
			if i%2 == 1 {
				status = id.VerificationStatusRejected
				reason = "unreadable"
			}
			err := s.store.MarkReviewed(ctx, req.ID, status, "op", reason, time.Now())
			switch {
			case err == nil:
				winCount.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				loseCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), winCount.Load())
	s.Equal(int32(reviewers-1), loseCount.Load())

	stored, err := s.store.FindByID(ctx, req.ID)
	s.Require().NoError(err)
	s.NotEqual(id.VerificationStatusPending, stored.Status)
	s.NotNil(stored.ReviewedAt)
}

func (s *PostgresStoreSuite) TestLifecycleRoundTrip() {
	ctx := context.Background()
	subjectID := id.NewSubjectID()
	req := newPendingRequest(subjectID)
	s.Require().NoError(s.store.Create(ctx, req))

	s.Run("pending request is findable by subject", func() {
		open, err := s.store.FindPendingBySubject(ctx, subjectID)
		s.Require().NoError(err)
		s.Equal(req.ID, open.ID)
	})

	s.Run("approval clears the open slot", func() {
		s.Require().NoError(s.store.MarkReviewed(ctx, req.ID, id.VerificationStatusApproved, "op-1", "", time.Now()))
		_, err := s.store.FindPendingBySubject(ctx, subjectID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("approved request shows up past the retention cutoff", func() {
		out, err := s.store.ListApprovedReviewedBefore(ctx, time.Now().Add(time.Minute))
		s.Require().NoError(err)
		s.Require().Len(out, 1)
		s.Equal(req.ID, out[0].ID)
	})

	s.Run("expiry is conditional on approved status", func() {
		s.Require().NoError(s.store.MarkExpired(ctx, req.ID, time.Now()))
		s.ErrorIs(s.store.MarkExpired(ctx, req.ID, time.Now()), sentinel.ErrInvalidState)
	})

	s.Run("erasure removes the subject's requests", func() {
		n, err := s.store.DeleteBySubject(ctx, subjectID)
		s.Require().NoError(err)
		s.Equal(1, n)
		_, err = s.store.FindByID(ctx, req.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

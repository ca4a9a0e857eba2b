package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newRequest(subjectID id.SubjectID, status id.VerificationStatus) *Request {
	return &Request{
		ID:        id.NewVerificationID(),
		SubjectID: subjectID,
		Kind:      id.DocumentKindPassport,
		FrontKey:  "front",
		SelfieKey: "selfie",
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func (s *InMemoryStoreSuite) TestCreate() {
	s.Run("second open request for the same subject conflicts", func() {
		subjectID := id.NewSubjectID()
		s.Require().NoError(s.store.Create(s.ctx, s.newRequest(subjectID, id.VerificationStatusPending)))

		err := s.store.Create(s.ctx, s.newRequest(subjectID, id.VerificationStatusPending))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("new open request allowed once previous is reviewed", func() {
		subjectID := id.NewSubjectID()
		first := s.newRequest(subjectID, id.VerificationStatusPending)
		s.Require().NoError(s.store.Create(s.ctx, first))
		s.Require().NoError(s.store.MarkReviewed(s.ctx, first.ID, id.VerificationStatusRejected, "op-1", "blurry", time.Now()))

		s.NoError(s.store.Create(s.ctx, s.newRequest(subjectID, id.VerificationStatusPending)))
	})
}

func (s *InMemoryStoreSuite) TestMarkReviewed() {
	s.Run("finalized request cannot be reviewed again", func() {
		req := s.newRequest(id.NewSubjectID(), id.VerificationStatusPending)
		s.Require().NoError(s.store.Create(s.ctx, req))
		s.Require().NoError(s.store.MarkReviewed(s.ctx, req.ID, id.VerificationStatusApproved, "op-1", "", time.Now()))

		err := s.store.MarkReviewed(s.ctx, req.ID, id.VerificationStatusRejected, "op-2", "late", time.Now())
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("unknown request is not found", func() {
		err := s.store.MarkReviewed(s.ctx, id.NewVerificationID(), id.VerificationStatusApproved, "op-1", "", time.Now())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestMarkExpired() {
	s.Run("only approved requests expire", func() {
		req := s.newRequest(id.NewSubjectID(), id.VerificationStatusPending)
		s.Require().NoError(s.store.Create(s.ctx, req))

		err := s.store.MarkExpired(s.ctx, req.ID, time.Now())
		s.ErrorIs(err, sentinel.ErrInvalidState)

		s.Require().NoError(s.store.MarkReviewed(s.ctx, req.ID, id.VerificationStatusApproved, "op-1", "", time.Now()))
		s.NoError(s.store.MarkExpired(s.ctx, req.ID, time.Now()))

		stored, err := s.store.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(id.VerificationStatusExpired, stored.Status)
	})
}

func (s *InMemoryStoreSuite) TestRetentionWindows() {
	now := time.Now()
	approveAt := func(reviewedAt time.Time) *Request {
		req := s.newRequest(id.NewSubjectID(), id.VerificationStatusPending)
		s.Require().NoError(s.store.Create(s.ctx, req))
		s.Require().NoError(s.store.MarkReviewed(s.ctx, req.ID, id.VerificationStatusApproved, "op-1", "", reviewedAt))
		return req
	}

	old := approveAt(now.AddDate(0, 0, -91))
	warnable := approveAt(now.AddDate(0, 0, -85))
	fresh := approveAt(now.AddDate(0, 0, -10))

	s.Run("between selects the warning window only", func() {
		out, err := s.store.ListApprovedReviewedBetween(s.ctx, now.AddDate(0, 0, -90), now.AddDate(0, 0, -83))
		s.Require().NoError(err)
		s.Require().Len(out, 1)
		s.Equal(warnable.ID, out[0].ID)
	})

	s.Run("before selects requests past the cutoff", func() {
		out, err := s.store.ListApprovedReviewedBefore(s.ctx, now.AddDate(0, 0, -90))
		s.Require().NoError(err)
		s.Require().Len(out, 1)
		s.Equal(old.ID, out[0].ID)
	})

	s.Run("expired requests drop out of both windows", func() {
		s.Require().NoError(s.store.MarkExpired(s.ctx, old.ID, now))
		out, err := s.store.ListApprovedReviewedBefore(s.ctx, now.AddDate(0, 0, -90))
		s.Require().NoError(err)
		s.Empty(out)
	})

	s.Run("fresh approvals are untouched", func() {
		out, err := s.store.ListApprovedReviewedBetween(s.ctx, now.AddDate(0, 0, -90), now.AddDate(0, 0, -83))
		s.Require().NoError(err)
		s.Require().Len(out, 1)
		s.NotEqual(fresh.ID, out[0].ID)
	})
}

func (s *InMemoryStoreSuite) TestSubjectErasure() {
	subjectID := id.NewSubjectID()
	req := s.newRequest(subjectID, id.VerificationStatusPending)
	req.DocumentNumber = "AB123456"
	s.Require().NoError(s.store.Create(s.ctx, req))

	s.Run("redact clears document numbers and keeps the record", func() {
		n, err := s.store.RedactDocumentNumbers(s.ctx, subjectID)
		s.Require().NoError(err)
		s.Equal(1, n)

		stored, err := s.store.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Empty(stored.DocumentNumber)
	})

	s.Run("delete removes every request for the subject", func() {
		n, err := s.store.DeleteBySubject(s.ctx, subjectID)
		s.Require().NoError(err)
		s.Equal(1, n)

		_, err = s.store.FindByID(s.ctx, req.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

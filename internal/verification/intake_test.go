package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"custodia/internal/audit"
	"custodia/internal/notify"
	"custodia/internal/platform/metrics"
	"custodia/internal/ratelimit"
	"custodia/internal/storage"
	"custodia/internal/subject"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/tx"
)

// =============================================================================
// Intake Service Test Suite
// =============================================================================
// Justification for unit tests: intake combines rate limiting, document
// validation, blob storage, and the transactional insert + audit write.
// Exercising the denial and conflict paths precisely requires controlling the
// counter store and pre-seeding open requests, which E2E flows cannot do.

type IntakeServiceSuite struct {
	suite.Suite
	store    *InMemoryStore
	subjects *subject.InMemoryStore
	blobs    *storage.MemoryBlobStore
	counters *ratelimit.InMemoryCounterStore
	audits   *audit.InMemoryStore
	notifier *notify.Recorder
	service  *IntakeService

	subjectID id.SubjectID
}

func TestIntakeServiceSuite(t *testing.T) {
	suite.Run(t, new(IntakeServiceSuite))
}

func (s *IntakeServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.subjects = subject.NewInMemoryStore()
	s.blobs = storage.NewMemoryBlobStore()
	s.counters = ratelimit.NewInMemoryCounterStore()
	s.audits = audit.NewInMemoryStore()
	s.notifier = &notify.Recorder{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.NewService(s.counters, ratelimit.DefaultLimits, logger)
	runner := tx.NewMemoryRunner(s.store, s.subjects, s.audits)
	s.service = NewIntakeService(
		s.store,
		s.subjects,
		s.blobs,
		limiter,
		audit.NewPublisher(s.audits),
		s.notifier,
		runner,
		logger,
		metrics.New(prometheus.NewRegistry()),
	)

	s.subjectID = id.NewSubjectID()
	s.Require().NoError(s.subjects.Save(context.Background(), &subject.Subject{
		ID:    s.subjectID,
		Email: "subject@example.com",
	}))
}

func (s *IntakeServiceSuite) submission(kind id.DocumentKind) Submission {
	sub := Submission{
		SubjectID:      s.subjectID,
		Kind:           kind,
		DocumentNumber: "X1234567",
		Front:          []byte("front-bytes"),
		Selfie:         []byte("selfie-bytes"),
		ContentType:    "image/jpeg",
	}
	if kind.RequiresBack() {
		sub.Back = []byte("back-bytes")
	}
	return sub
}

// =============================================================================
// Submit Tests
// =============================================================================

func (s *IntakeServiceSuite) TestSubmit() {
	ctx := context.Background()

	s.Run("passport submission opens a pending request", func() {
		req, err := s.service.Submit(ctx, s.submission(id.DocumentKindPassport))
		s.Require().NoError(err)
		s.Equal(id.VerificationStatusPending, req.Status)
		s.Equal(s.subjectID, req.SubjectID)
		s.NotEmpty(req.FrontKey)
		s.NotEmpty(req.SelfieKey)
		s.Empty(req.BackKey)

		stored, err := s.store.FindByID(ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(id.VerificationStatusPending, stored.Status)
	})

	s.Run("national id submission stores the back image", func() {
		s.SetupTest()
		req, err := s.service.Submit(ctx, s.submission(id.DocumentKindNationalID))
		s.Require().NoError(err)
		s.NotEmpty(req.BackKey)
		s.Len(req.BlobKeys(), 3)
	})

	s.Run("records a submission audit entry in the same transaction", func() {
		s.SetupTest()
		req, err := s.service.Submit(ctx, s.submission(id.DocumentKindDriverLicense))
		s.Require().NoError(err)

		entries, err := s.audits.ListByEntity(ctx, audit.EntityVerification, req.ID.String())
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionVerificationSubmitted, entries[0].Action)
		s.Equal(s.subjectID.String(), entries[0].ActorID)
	})

	s.Run("sends an acknowledgment after commit", func() {
		s.SetupTest()
		_, err := s.service.Submit(ctx, s.submission(id.DocumentKindPassport))
		s.Require().NoError(err)
		s.Equal(1, s.notifier.Count(notify.TemplateSubmissionReceived))
	})
}

func (s *IntakeServiceSuite) TestSubmitValidation() {
	ctx := context.Background()

	s.Run("national id without back image is rejected", func() {
		sub := s.submission(id.DocumentKindNationalID)
		sub.Back = nil
		_, err := s.service.Submit(ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeMissingDocumentBack))
	})

	s.Run("passport with back image is rejected", func() {
		sub := s.submission(id.DocumentKindPassport)
		sub.Back = []byte("unexpected")
		_, err := s.service.Submit(ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing front image is rejected", func() {
		sub := s.submission(id.DocumentKindPassport)
		sub.Front = nil
		_, err := s.service.Submit(ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing selfie is rejected", func() {
		sub := s.submission(id.DocumentKindPassport)
		sub.Selfie = nil
		_, err := s.service.Submit(ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown document kind is rejected", func() {
		sub := s.submission(id.DocumentKindPassport)
		sub.Kind = id.DocumentKind("UTILITY_BILL")
		_, err := s.service.Submit(ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("validation failures store no blobs", func() {
		before := s.blobs.Len()
		sub := s.submission(id.DocumentKindNationalID)
		sub.Back = nil
		_, err := s.service.Submit(ctx, sub)
		s.Error(err)
		s.Equal(before, s.blobs.Len())
	})
}

func (s *IntakeServiceSuite) TestSubmitAlreadyPending() {
	ctx := context.Background()

	_, err := s.service.Submit(ctx, s.submission(id.DocumentKindPassport))
	s.Require().NoError(err)

	s.Run("second submission while pending is refused", func() {
		_, err := s.service.Submit(ctx, s.submission(id.DocumentKindPassport))
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyPending))
	})
}

func (s *IntakeServiceSuite) TestSubmitRateLimited() {
	ctx := context.Background()

	// Burn the hourly budget; each round is rejected so the one-pending rule
	// never interferes with the next submission.
	for range ratelimit.DefaultLimits.HourlyLimit {
		req, err := s.service.Submit(ctx, s.submission(id.DocumentKindPassport))
		s.Require().NoError(err)
		// Reject to clear the pending slot for the next round.
		s.Require().NoError(s.store.MarkReviewed(ctx, req.ID, id.VerificationStatusRejected, "op-1", "blurry", time.Now()))
	}

	s.Run("submission over the hourly budget is denied with a reset hint", func() {
		_, err := s.service.Submit(ctx, s.submission(id.DocumentKindPassport))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeRateLimited))

		meta := dErrors.MetaOf(err)
		s.Require().NotNil(meta)
		resetAt, parseErr := time.Parse(time.RFC3339, meta["reset_at"])
		s.Require().NoError(parseErr)
		s.True(resetAt.After(time.Now().Add(-time.Minute)))
	})

	s.Run("denied submission stores no blobs", func() {
		before := s.blobs.Len()
		_, err := s.service.Submit(ctx, s.submission(id.DocumentKindPassport))
		s.Error(err)
		s.Equal(before, s.blobs.Len())
	})
}

func (s *IntakeServiceSuite) TestSubmitLimiterUnavailable() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.NewService(failingCounterStore{}, ratelimit.DefaultLimits, logger)
	service := NewIntakeService(
		s.store,
		s.subjects,
		s.blobs,
		limiter,
		audit.NewPublisher(s.audits),
		s.notifier,
		tx.NewMemoryRunner(s.store, s.subjects, s.audits),
		logger,
		metrics.New(prometheus.NewRegistry()),
	)

	s.Run("limiter outage denies the submission", func() {
		_, err := service.Submit(ctx, s.submission(id.DocumentKindPassport))
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

// =============================================================================
// FindForSubject Tests
// =============================================================================

func (s *IntakeServiceSuite) TestFindForSubject() {
	ctx := context.Background()

	req, err := s.service.Submit(ctx, s.submission(id.DocumentKindPassport))
	s.Require().NoError(err)

	s.Run("owner can read the request", func() {
		found, err := s.service.FindForSubject(ctx, req.ID, s.subjectID)
		s.Require().NoError(err)
		s.Equal(req.ID, found.ID)
	})

	s.Run("another subject gets not found", func() {
		_, err := s.service.FindForSubject(ctx, req.ID, id.NewSubjectID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown id gets not found", func() {
		_, err := s.service.FindForSubject(ctx, id.NewVerificationID(), s.subjectID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// failingCounterStore simulates a counter backend outage.
type failingCounterStore struct{}

func (failingCounterStore) Count(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("counter store down")
}

func (failingCounterStore) Incr(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("counter store down")
}

func (failingCounterStore) Decr(context.Context, string) error {
	return errors.New("counter store down")
}

package retention

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
	"custodia/internal/storage"
	"custodia/internal/subject"
	"custodia/internal/verification"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/tx"
)

// =============================================================================
// Retention Scheduler Test Suite
// =============================================================================
// Justification for unit tests: the day-90 boundary, the same-day warning
// dedupe, and the partial-deletion retry all depend on the relationship
// between review timestamps and the sweep clock, which must be fixed.

type SchedulerSuite struct {
	suite.Suite
	store    *verification.InMemoryStore
	subjects *subject.InMemoryStore
	blobs    *storage.MemoryBlobStore
	audits   *audit.InMemoryStore
	notifier *notify.Recorder
	sched    *Scheduler

	now time.Time
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.store = verification.NewInMemoryStore()
	s.subjects = subject.NewInMemoryStore()
	s.blobs = storage.NewMemoryBlobStore()
	s.audits = audit.NewInMemoryStore()
	s.notifier = &notify.Recorder{}
	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.sched = NewScheduler(
		s.store,
		s.subjects,
		s.blobs,
		audit.NewPublisher(s.audits),
		s.notifier,
		tx.NewMemoryRunner(s.store, s.subjects, s.audits),
		DefaultPolicy,
		logger,
		metrics.New(prometheus.NewRegistry()),
	)
}

// seedApproved creates an approved request whose documents live in the blob
// store, reviewed the given number of days before the sweep clock.
func (s *SchedulerSuite) seedApproved(daysAgo int) *verification.Request {
	ctx := context.Background()
	subjectID := id.NewSubjectID()
	s.Require().NoError(s.subjects.Save(ctx, &subject.Subject{ID: subjectID, Email: "subject@example.com"}))

	front, err := s.blobs.Put(ctx, []byte("front"), "image/jpeg")
	s.Require().NoError(err)
	selfie, err := s.blobs.Put(ctx, []byte("selfie"), "image/jpeg")
	s.Require().NoError(err)

	req := &verification.Request{
		ID:        id.NewVerificationID(),
		SubjectID: subjectID,
		Kind:      id.DocumentKindPassport,
		FrontKey:  front,
		SelfieKey: selfie,
		Status:    id.VerificationStatusPending,
		CreatedAt: s.now.AddDate(0, 0, -daysAgo-1),
	}
	s.Require().NoError(s.store.Create(ctx, req))
	s.Require().NoError(s.store.MarkReviewed(ctx, req.ID, id.VerificationStatusApproved, "op-1", "", s.now.AddDate(0, 0, -daysAgo)))
	return req
}

func (s *SchedulerSuite) find(reqID id.VerificationID) *verification.Request {
	req, err := s.store.FindByID(context.Background(), reqID)
	s.Require().NoError(err)
	return req
}

// =============================================================================
// Expiry Tests
// =============================================================================

func (s *SchedulerSuite) TestSweepExpiry() {
	ctx := context.Background()

	s.Run("approval past retention is expired and its blobs removed", func() {
		req := s.seedApproved(91)

		result, err := s.sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Equal(1, result.Expired)
		s.Zero(result.Errors)

		s.Equal(id.VerificationStatusExpired, s.find(req.ID).Status)
		for _, key := range req.BlobKeys() {
			_, err := s.blobs.Resolve(ctx, key)
			s.Error(err)
		}
	})

	s.Run("expiry writes a system audit entry and notifies the subject", func() {
		s.SetupTest()
		req := s.seedApproved(95)

		_, err := s.sched.Sweep(ctx, s.now)
		s.Require().NoError(err)

		entries, err := s.audits.ListByEntity(ctx, audit.EntityVerification, req.ID.String())
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionVerificationExpired, entries[0].Action)
		s.Equal(audit.ActorSystem, entries[0].ActorID)

		s.Equal(1, s.notifier.Count(notify.TemplateRetentionExpired))
	})

	s.Run("approval inside retention is untouched", func() {
		s.SetupTest()
		req := s.seedApproved(89)

		result, err := s.sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Zero(result.Expired)
		s.Equal(id.VerificationStatusApproved, s.find(req.ID).Status)
	})

	s.Run("approval reviewed exactly at the retention boundary expires", func() {
		s.SetupTest()
		req := s.seedApproved(90)

		result, err := s.sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Equal(1, result.Expired)
		s.Equal(id.VerificationStatusExpired, s.find(req.ID).Status)
	})

	s.Run("sweep is idempotent", func() {
		s.SetupTest()
		s.seedApproved(91)

		first, err := s.sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Equal(1, first.Expired)

		second, err := s.sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Zero(second.Expired)
		s.Zero(second.Errors)
	})
}

func (s *SchedulerSuite) TestSweepPartialBlobFailure() {
	ctx := context.Background()
	req := s.seedApproved(91)

	blobs := &failingBlobStore{BlobStore: s.blobs, failKey: req.SelfieKey}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewScheduler(
		s.store,
		s.subjects,
		blobs,
		audit.NewPublisher(s.audits),
		s.notifier,
		tx.NewMemoryRunner(s.store, s.subjects, s.audits),
		DefaultPolicy,
		logger,
		metrics.New(prometheus.NewRegistry()),
	)

	s.Run("failed blob deletion leaves the request approved", func() {
		result, err := sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Zero(result.Expired)
		s.Equal(1, result.Errors)
		s.Equal(id.VerificationStatusApproved, s.find(req.ID).Status)
	})

	s.Run("next sweep finishes the job once storage recovers", func() {
		blobs.failKey = ""
		result, err := sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Equal(1, result.Expired)
		s.Equal(id.VerificationStatusExpired, s.find(req.ID).Status)
	})
}

// =============================================================================
// Warning Tests
// =============================================================================

func (s *SchedulerSuite) TestSweepWarnings() {
	ctx := context.Background()

	s.Run("approval entering the warning window is warned once per day", func() {
		req := s.seedApproved(85)

		first, err := s.sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Equal(1, first.Warned)
		s.Equal(1, s.notifier.Count(notify.TemplateRetentionWarning))
		s.NotNil(s.find(req.ID).WarnedAt)

		second, err := s.sched.Sweep(ctx, s.now.Add(2*time.Hour))
		s.Require().NoError(err)
		s.Zero(second.Warned)
		s.Equal(1, s.notifier.Count(notify.TemplateRetentionWarning))
	})

	s.Run("warning repeats on the next day", func() {
		result, err := s.sched.Sweep(ctx, s.now.AddDate(0, 0, 1))
		s.Require().NoError(err)
		s.Equal(1, result.Warned)
		s.Equal(2, s.notifier.Count(notify.TemplateRetentionWarning))
	})

	s.Run("warning carries the days remaining", func() {
		s.Require().NotEmpty(s.notifier.Sends)
		vars := s.notifier.Sends[0].Vars
		s.Equal("5", vars["days_remaining"])
	})

	s.Run("warning does not change the request status", func() {
		s.SetupTest()
		req := s.seedApproved(84)
		_, err := s.sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Equal(id.VerificationStatusApproved, s.find(req.ID).Status)
	})

	s.Run("approvals outside the warning window are not warned", func() {
		s.SetupTest()
		s.seedApproved(82)

		result, err := s.sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Zero(result.Warned)
		s.Zero(s.notifier.Count(notify.TemplateRetentionWarning))
	})
}

func (s *SchedulerSuite) TestSweepWarningRecordFailure() {
	ctx := context.Background()
	req := s.seedApproved(85)

	store := &warnFailingStore{Store: s.store, fail: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewScheduler(
		store,
		s.subjects,
		s.blobs,
		audit.NewPublisher(s.audits),
		s.notifier,
		tx.NewMemoryRunner(s.store, s.subjects, s.audits),
		DefaultPolicy,
		logger,
		metrics.New(prometheus.NewRegistry()),
	)

	s.Run("failed warning record sends nothing", func() {
		result, err := sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Zero(result.Warned)
		s.Equal(1, result.Errors)
		s.Zero(s.notifier.Count(notify.TemplateRetentionWarning))
		s.Nil(s.find(req.ID).WarnedAt)
	})

	s.Run("recovered store warns exactly once", func() {
		store.fail = false
		result, err := sched.Sweep(ctx, s.now)
		s.Require().NoError(err)
		s.Equal(1, result.Warned)
		s.Equal(1, s.notifier.Count(notify.TemplateRetentionWarning))
	})
}

// warnFailingStore fails the warning record write to simulate storage trouble
// between the dedupe check and the notification.
type warnFailingStore struct {
	verification.Store
	fail bool
}

func (f *warnFailingStore) MarkWarned(ctx context.Context, verificationID id.VerificationID, warnedAt time.Time) error {
	if f.fail {
		return errors.New("storage unavailable")
	}
	return f.Store.MarkWarned(ctx, verificationID, warnedAt)
}

// failingBlobStore fails deletion of one key to simulate partial storage
// trouble.
type failingBlobStore struct {
	storage.BlobStore
	failKey string
}

func (f *failingBlobStore) Delete(ctx context.Context, key string) (bool, error) {
	if f.failKey != "" && key == f.failKey {
		return false, errors.New("storage unavailable")
	}
	return f.BlobStore.Delete(ctx, key)
}

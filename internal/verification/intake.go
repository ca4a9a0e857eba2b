package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"custodia/internal/audit"
	"custodia/internal/notify"
	"custodia/internal/platform/metrics"
	"custodia/internal/ratelimit"
	"custodia/internal/storage"
	"custodia/internal/subject"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

// Submission is the validated intake input. Document bytes arrive as opaque
// blobs; content analysis is out of scope.
type Submission struct {
	SubjectID      id.SubjectID
	Kind           id.DocumentKind
	DocumentNumber string
	Front          []byte
	Back           []byte
	Selfie         []byte
	ContentType    string
}

// IntakeService accepts identity documents and opens verification requests.
// It keeps orchestration out of handlers: rate limiting, validation, blob
// storage, the transactional insert + audit write, and the best-effort
// acknowledgment all live here.
type IntakeService struct {
	store    Store
	subjects subject.Store
	blobs    storage.BlobStore
	limiter  *ratelimit.Service
	audits   *audit.Publisher
	notifier notify.Notifier
	txr      tx.Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewIntakeService(
	store Store,
	subjects subject.Store,
	blobs storage.BlobStore,
	limiter *ratelimit.Service,
	audits *audit.Publisher,
	notifier notify.Notifier,
	txr tx.Runner,
	logger *slog.Logger,
	m *metrics.Metrics,
) *IntakeService {
	return &IntakeService{
		store:    store,
		subjects: subjects,
		blobs:    blobs,
		limiter:  limiter,
		audits:   audits,
		notifier: notifier,
		txr:      txr,
		logger:   logger,
		metrics:  m,
	}
}

// Submit validates the submission, stores the document blobs, and opens a
// PENDING request. The request insert and its audit entry share one
// transaction; the acknowledgment notification is dispatched after commit and
// never fails the submission.
//
// Errors: CodeRateLimited with reset metadata when over budget;
// CodeAlreadyPending when the subject has an open request;
// CodeMissingDocumentBack when a national ID arrives without a back image;
// CodeInvalidInput for other validation failures.
func (s *IntakeService) Submit(ctx context.Context, sub Submission) (*Request, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	decision, err := s.limiter.TryConsume(ctx, sub.SubjectID, ratelimit.ActionDocumentSubmit)
	if err != nil {
		// Fail closed: limiter unavailability denies the intake path.
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limiter unavailable")
	}
	if !decision.Allowed {
		s.metrics.RateLimitDenials.Inc()
		return nil, dErrors.New(dErrors.CodeRateLimited, "submission rate limit exceeded").
			WithMeta("reset_at", decision.ResetAt.UTC().Format(time.RFC3339))
	}

	// Fast pre-check for a friendlier error; the store's conditional insert
	// is the authoritative guard under concurrency.
	if _, err := s.store.FindPendingBySubject(ctx, sub.SubjectID); err == nil {
		return nil, dErrors.New(dErrors.CodeAlreadyPending, "subject already has an open verification request")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check open requests")
	}

	// Blob storage is a hard precondition of the insert. If the insert later
	// fails the blobs are orphaned, which an out-of-band reconciliation
	// cleans up; submission success never blocks on cleanup guarantees.
	req := &Request{
		ID:             id.NewVerificationID(),
		SubjectID:      sub.SubjectID,
		Kind:           sub.Kind,
		DocumentNumber: sub.DocumentNumber,
		Status:         id.VerificationStatusPending,
		CreatedAt:      time.Now(),
	}
	if req.FrontKey, err = s.blobs.Put(ctx, sub.Front, sub.ContentType); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store front document")
	}
	if len(sub.Back) > 0 {
		if req.BackKey, err = s.blobs.Put(ctx, sub.Back, sub.ContentType); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store back document")
		}
	}
	if req.SelfieKey, err = s.blobs.Put(ctx, sub.Selfie, sub.ContentType); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store selfie")
	}

	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, req); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyPending, "subject already has an open verification request")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification request")
		}
		return s.audits.Emit(ctx, audit.Entry{
			ActorID:    sub.SubjectID.String(),
			Action:     audit.ActionVerificationSubmitted,
			EntityType: audit.EntityVerification,
			EntityID:   req.ID.String(),
			Details:    map[string]string{"kind": sub.Kind.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SubmissionsTotal.Inc()
	s.notifySubject(ctx, sub.SubjectID, notify.TemplateSubmissionReceived, map[string]string{
		"verification_id": req.ID.String(),
	})
	return req, nil
}

// FindForSubject returns the request when it belongs to the subject.
func (s *IntakeService) FindForSubject(ctx context.Context, verificationID id.VerificationID, subjectID id.SubjectID) (*Request, error) {
	req, err := s.store.FindByID(ctx, verificationID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "verification request not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification request")
	}
	if req.SubjectID != subjectID {
		return nil, dErrors.New(dErrors.CodeNotFound, "verification request not found")
	}
	return req, nil
}

func validateSubmission(sub Submission) error {
	if sub.SubjectID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "subject id is required")
	}
	if !sub.Kind.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid document kind")
	}
	if len(sub.Front) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "front document image is required")
	}
	if len(sub.Selfie) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "selfie image is required")
	}
	if sub.Kind.RequiresBack() && len(sub.Back) == 0 {
		return dErrors.New(dErrors.CodeMissingDocumentBack, "back document image is required for national IDs")
	}
	if !sub.Kind.RequiresBack() && len(sub.Back) > 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "back document image is only accepted for national IDs")
	}
	return nil
}

// notifySubject dispatches a best-effort notification; failures are logged,
// never propagated.
func (s *IntakeService) notifySubject(ctx context.Context, subjectID id.SubjectID, template notify.Template, vars map[string]string) {
	subj, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		s.logger.Warn("cannot resolve notification recipient", "subject_id", subjectID, "error", err)
		return
	}
	if err := s.notifier.Send(ctx, template, subj.Email, vars); err != nil {
		s.logger.Warn("notification failed", "template", template, "subject_id", subjectID, "error", err)
	}
}

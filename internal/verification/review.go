package verification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"custodia/internal/audit"
	"custodia/internal/notify"
	"custodia/internal/platform/metrics"
	"custodia/internal/subject"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

// MaxBatchSize caps a single batch review to limit the blast radius of one
// operator action.
const MaxBatchSize = 10

// batchParallelism bounds concurrent item transactions within a batch.
const batchParallelism = 4

// BatchResult aggregates per-item outcomes of a batch review.
type BatchResult struct {
	ApprovedCount int
	Failures      []BatchFailure
}

type BatchFailure struct {
	ID     id.VerificationID
	Reason string
}

// ReviewService finalizes pending verification requests. The status write is
// conditional on the request still being PENDING, so two concurrent reviewers
// produce exactly one winner. On approval the subject's verified flag flips
// inside the same transaction as the status write.
type ReviewService struct {
	store    Store
	subjects subject.Store
	audits   *audit.Publisher
	notifier notify.Notifier
	txr      tx.Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewReviewService(
	store Store,
	subjects subject.Store,
	audits *audit.Publisher,
	notifier notify.Notifier,
	txr tx.Runner,
	logger *slog.Logger,
	m *metrics.Metrics,
) *ReviewService {
	return &ReviewService{
		store:    store,
		subjects: subjects,
		audits:   audits,
		notifier: notifier,
		txr:      txr,
		logger:   logger,
		metrics:  m,
	}
}

// Review approves or rejects a single pending request.
//
// Errors: CodeNotPending when the request was already finalized (including a
// lost race against a concurrent reviewer); CodeReasonRequired when rejecting
// without a reason; CodeNotFound for unknown IDs.
func (s *ReviewService) Review(ctx context.Context, verificationID id.VerificationID, reviewerID string, approved bool, rejectionReason string) (*Request, error) {
	if verificationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "verification id is required")
	}
	if reviewerID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "reviewer id is required")
	}
	if !approved && rejectionReason == "" {
		return nil, dErrors.New(dErrors.CodeReasonRequired, "rejection reason is required")
	}
	if approved {
		// RejectionReason is non-empty iff REJECTED.
		rejectionReason = ""
	}

	event := EventReject
	action := audit.ActionVerificationRejected
	if approved {
		event = EventApprove
		action = audit.ActionVerificationApproved
	}

	var req *Request
	err := s.txr.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.FindByID(ctx, verificationID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "verification request not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification request")
		}

		status, err := Transition(current.Status, event)
		if err != nil {
			return err
		}

		reviewedAt := time.Now()
		if err := s.store.MarkReviewed(ctx, verificationID, status, reviewerID, rejectionReason, reviewedAt); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeNotPending, "verification is not pending")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize review")
		}

		if approved {
			if err := s.subjects.SetVerified(ctx, current.SubjectID, reviewedAt); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set subject verified flag")
			}
		}

		if err := s.audits.Emit(ctx, audit.Entry{
			ActorID:    reviewerID,
			Action:     action,
			EntityType: audit.EntityVerification,
			EntityID:   verificationID.String(),
			Details:    reviewDetails(approved, rejectionReason),
		}); err != nil {
			return err
		}

		current.Status = status
		current.ReviewerID = reviewerID
		current.RejectionReason = rejectionReason
		current.ReviewedAt = &reviewedAt
		req = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReviewsTotal.WithLabelValues(decisionLabel(approved)).Inc()
	s.notifyReviewOutcome(ctx, req, approved)
	return req, nil
}

// ReviewBatch approves every id in the batch. Items are independent: each
// runs in its own transaction and a failure on one never aborts the others.
func (s *ReviewService) ReviewBatch(ctx context.Context, verificationIDs []id.VerificationID, reviewerID string) (*BatchResult, error) {
	if len(verificationIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "batch must not be empty")
	}
	if len(verificationIDs) > MaxBatchSize {
		return nil, dErrors.New(dErrors.CodeBadRequest, "batch exceeds maximum size")
	}

	var (
		mu     sync.Mutex
		result BatchResult
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchParallelism)
	for _, verificationID := range verificationIDs {
		g.Go(func() error {
			_, err := s.Review(ctx, verificationID, reviewerID, true, "")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, BatchFailure{
					ID:     verificationID,
					Reason: string(dErrors.CodeOf(err)),
				})
				return nil
			}
			result.ApprovedCount++
			return nil
		})
	}
	_ = g.Wait()
	return &result, nil
}

func reviewDetails(approved bool, rejectionReason string) map[string]string {
	details := map[string]string{"decision": decisionLabel(approved)}
	if rejectionReason != "" {
		details["rejection_reason"] = rejectionReason
	}
	return details
}

func decisionLabel(approved bool) string {
	if approved {
		return "approved"
	}
	return "rejected"
}

func (s *ReviewService) notifyReviewOutcome(ctx context.Context, req *Request, approved bool) {
	subj, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		s.logger.Warn("cannot resolve notification recipient", "subject_id", req.SubjectID, "error", err)
		return
	}
	template := notify.TemplateRejected
	vars := map[string]string{"verification_id": req.ID.String()}
	if approved {
		template = notify.TemplateApproved
	} else {
		vars["rejection_reason"] = req.RejectionReason
	}
	if err := s.notifier.Send(ctx, template, subj.Email, vars); err != nil {
		s.logger.Warn("notification failed", "template", template, "subject_id", req.SubjectID, "error", err)
	}
}

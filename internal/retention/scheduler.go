package retention

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"custodia/internal/audit"
	"custodia/internal/notify"
	"custodia/internal/platform/metrics"
	"custodia/internal/storage"
	"custodia/internal/subject"
	"custodia/internal/verification"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

// Policy fixes the legally mandated retention windows.
type Policy struct {
	RetentionDays   int
	WarningLeadDays int
}

// DefaultPolicy purges documents 90 days after approval and warns subjects
// 7 days ahead.
var DefaultPolicy = Policy{RetentionDays: 90, WarningLeadDays: 7}

// Result aggregates one sweep for operational alerting. Per-record failures
// are counted, never propagated: the next scheduled run retries them.
type Result struct {
	Warned  int
	Expired int
	Errors  int
}

// Scheduler drives the retention lifecycle over approved verifications. Sweep
// is re-entrant: the status checks and the per-day warning dedupe make
// repeated runs within the same period no-ops.
type Scheduler struct {
	store    verification.Store
	subjects subject.Store
	blobs    storage.BlobStore
	audits   *audit.Publisher
	notifier notify.Notifier
	txr      tx.Runner
	policy   Policy
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewScheduler(
	store verification.Store,
	subjects subject.Store,
	blobs storage.BlobStore,
	audits *audit.Publisher,
	notifier notify.Notifier,
	txr tx.Runner,
	policy Policy,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Scheduler {
	if policy.RetentionDays <= 0 {
		policy = DefaultPolicy
	}
	return &Scheduler{
		store:    store,
		subjects: subjects,
		blobs:    blobs,
		audits:   audits,
		notifier: notifier,
		txr:      txr,
		policy:   policy,
		logger:   logger,
		metrics:  m,
	}
}

// Sweep warns subjects approaching expiry, then expires documents past
// retention. Storage trouble on one record never halts the rest.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (Result, error) {
	var result Result

	expiryCutoff := now.AddDate(0, 0, -s.policy.RetentionDays)
	warningCutoff := now.AddDate(0, 0, -(s.policy.RetentionDays - s.policy.WarningLeadDays))

	warnable, err := s.store.ListApprovedReviewedBetween(ctx, expiryCutoff, warningCutoff)
	if err != nil {
		return result, err
	}
	for _, req := range warnable {
		if warnedSameDay(req.WarnedAt, now) {
			continue
		}
		if err := s.warn(ctx, req, now); err != nil {
			s.logger.Warn("retention warning failed", "verification_id", req.ID, "error", err)
			result.Errors++
			continue
		}
		result.Warned++
	}

	expirable, err := s.store.ListApprovedReviewedBefore(ctx, expiryCutoff)
	if err != nil {
		return result, err
	}
	for _, req := range expirable {
		if err := s.expire(ctx, req, now); err != nil {
			s.logger.Warn("retention expiry failed", "verification_id", req.ID, "error", err)
			result.Errors++
			continue
		}
		result.Expired++
	}

	s.metrics.SweepWarnedTotal.Add(float64(result.Warned))
	s.metrics.SweepExpiredTotal.Add(float64(result.Expired))
	s.metrics.SweepErrorsTotal.Add(float64(result.Errors))
	s.logger.Info("retention sweep finished",
		"warned", result.Warned, "expired", result.Expired, "errors", result.Errors)
	return result, nil
}

// warn records the warning, then sends the approaching-expiry notification.
// The record write comes first: if it fails, the sweep retries without having
// sent anything, so a subject is never warned twice for the same failure. The
// warning does not change the request status.
func (s *Scheduler) warn(ctx context.Context, req *verification.Request, now time.Time) error {
	subj, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		return err
	}

	if err := s.store.MarkWarned(ctx, req.ID, now); err != nil {
		return err
	}

	daysRemaining := s.policy.RetentionDays - int(now.Sub(*req.ReviewedAt).Hours()/24)
	if daysRemaining < 0 {
		daysRemaining = 0
	}
	if err := s.notifier.Send(ctx, notify.TemplateRetentionWarning, subj.Email, map[string]string{
		"verification_id": req.ID.String(),
		"days_remaining":  strconv.Itoa(daysRemaining),
	}); err != nil {
		s.logger.Warn("notification failed", "template", notify.TemplateRetentionWarning, "error", err)
	}
	return nil
}

// expire deletes the document blobs, then transitions the request. A partial
// blob deletion leaves the request APPROVED so the next sweep retries; the
// deletes themselves are idempotent.
func (s *Scheduler) expire(ctx context.Context, req *verification.Request, now time.Time) error {
	for _, key := range req.BlobKeys() {
		if _, err := s.blobs.Delete(ctx, key); err != nil {
			return err
		}
	}

	err := s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.MarkExpired(ctx, req.ID, now); err != nil {
			// Lost a race against another sweep: already expired means done.
			if errors.Is(err, sentinel.ErrInvalidState) {
				return nil
			}
			return err
		}
		return s.audits.Emit(ctx, audit.Entry{
			ActorID:    audit.ActorSystem,
			Action:     audit.ActionVerificationExpired,
			EntityType: audit.EntityVerification,
			EntityID:   req.ID.String(),
			Details:    map[string]string{"reviewed_at": req.ReviewedAt.UTC().Format(time.RFC3339)},
		})
	})
	if err != nil {
		return err
	}

	if subj, err := s.subjects.FindByID(ctx, req.SubjectID); err == nil {
		if err := s.notifier.Send(ctx, notify.TemplateRetentionExpired, subj.Email, map[string]string{
			"verification_id": req.ID.String(),
		}); err != nil {
			s.logger.Warn("notification failed", "template", notify.TemplateRetentionExpired, "error", err)
		}
	}
	return nil
}

func warnedSameDay(warnedAt *time.Time, now time.Time) bool {
	if warnedAt == nil {
		return false
	}
	wy, wm, wd := warnedAt.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return wy == ny && wm == nm && wd == nd
}

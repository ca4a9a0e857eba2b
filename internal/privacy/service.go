package privacy

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"custodia/internal/audit"
	"custodia/internal/consent"
	"custodia/internal/platform/metrics"
	"custodia/internal/storage"
	"custodia/internal/subject"
	"custodia/internal/verification"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

// Service implements the data subject rights: export, anonymization, and hard
// deletion. Anonymize and HardDelete are deliberately separate methods wired
// to separate routes; the destructive cascade is never reachable from the
// anonymization path without an explicit switch by the caller.
type Service struct {
	subjects      subject.Store
	verifications verification.Store
	consents      consent.Store
	audits        *audit.Publisher
	blobs         storage.BlobStore
	txr           tx.Runner
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

func NewService(
	subjects subject.Store,
	verifications verification.Store,
	consents consent.Store,
	audits *audit.Publisher,
	blobs storage.BlobStore,
	txr tx.Runner,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		subjects:      subjects,
		verifications: verifications,
		consents:      consents,
		audits:        audits,
		blobs:         blobs,
		txr:           txr,
		logger:        logger,
		metrics:       m,
	}
}

// Export aggregates the subject's personal data into one bundle. The read has
// one side effect: an audit entry recording that the export happened, which
// is not best-effort.
func (s *Service) Export(ctx context.Context, subjectID id.SubjectID) (*ExportBundle, error) {
	subj, err := s.findSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	verifications, err := s.verifications.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifications")
	}
	consents, err := s.consents.History(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consent history")
	}
	trail, err := s.audits.ListByActor(ctx, subjectID.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit trail")
	}

	if err := s.audits.Emit(ctx, audit.Entry{
		ActorID:    subjectID.String(),
		Action:     audit.ActionDataExportRequested,
		EntityType: audit.EntitySubject,
		EntityID:   subjectID.String(),
	}); err != nil {
		return nil, err
	}

	s.metrics.PrivacyOpsTotal.WithLabelValues("export").Inc()
	return &ExportBundle{
		GeneratedAt:   time.Now(),
		Subject:       subj,
		Verifications: verifications,
		Consents:      consents,
		AuditTrail:    trail,
	}, nil
}

// Anonymize irreversibly overwrites direct identifiers while preserving
// behavioral counters for aggregate statistics. All redactions commit in one
// transaction or none do.
func (s *Service) Anonymize(ctx context.Context, subjectID id.SubjectID) (*AnonymizationResult, error) {
	var result AnonymizationResult
	err := s.txr.RunInTx(ctx, func(ctx context.Context) error {
		subj, err := s.findSubject(ctx, subjectID)
		if err != nil {
			return err
		}

		subj.Email = "redacted-" + subjectID.String() + "@anonymized.invalid"
		subj.FullName = Redacted
		subj.Phone = ""
		subj.Bio = ""
		subj.Anonymized = true
		if err := s.subjects.Save(ctx, subj); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to redact subject")
		}
		result.SubjectsRedacted = 1

		if result.VerificationsRedacted, err = s.verifications.RedactDocumentNumbers(ctx, subjectID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to redact verifications")
		}
		if result.ConsentsRedacted, err = s.consents.RedactMetadata(ctx, subjectID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to redact consent metadata")
		}

		return s.audits.Emit(ctx, audit.Entry{
			ActorID:    subjectID.String(),
			Action:     audit.ActionSubjectAnonymized,
			EntityType: audit.EntitySubject,
			EntityID:   subjectID.String(),
			Details: map[string]string{
				"verifications_redacted": strconv.Itoa(result.VerificationsRedacted),
				"consents_redacted":      strconv.Itoa(result.ConsentsRedacted),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.PrivacyOpsTotal.WithLabelValues("anonymize").Inc()
	return &result, nil
}

// HardDelete cascades removal across every entity owned by the subject, leaf
// entities first, in a single transaction. The audit entry recording the
// deletion is the last statement inside that transaction: a rollback also
// rolls back the audit claim, so the trail never asserts a deletion that did
// not happen.
func (s *Service) HardDelete(ctx context.Context, subjectID id.SubjectID) (*DeletionResult, error) {
	var result DeletionResult
	var blobKeys []string

	err := s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.findSubject(ctx, subjectID); err != nil {
			return err
		}

		// Collect blob keys before the rows disappear; the blobs themselves
		// are deleted after commit since object storage cannot roll back.
		verifications, err := s.verifications.ListBySubject(ctx, subjectID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifications")
		}
		for _, req := range verifications {
			blobKeys = append(blobKeys, req.BlobKeys()...)
		}

		if result.ConsentsDeleted, err = s.consents.DeleteBySubject(ctx, subjectID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete consent records")
		}
		if result.VerificationsDeleted, err = s.verifications.DeleteBySubject(ctx, subjectID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete verifications")
		}
		if err := s.subjects.Delete(ctx, subjectID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete subject")
		}
		result.SubjectDeleted = true

		return s.audits.Emit(ctx, audit.Entry{
			ActorID:    subjectID.String(),
			Action:     audit.ActionSubjectDeleted,
			EntityType: audit.EntitySubject,
			EntityID:   subjectID.String(),
			Details: map[string]string{
				"consents_deleted":      strconv.Itoa(result.ConsentsDeleted),
				"verifications_deleted": strconv.Itoa(result.VerificationsDeleted),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	for _, key := range blobKeys {
		if _, err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("orphaned blob after hard delete", "key", key, "error", err)
		}
	}
	s.metrics.PrivacyOpsTotal.WithLabelValues("hard_delete").Inc()
	return &result, nil
}

func (s *Service) findSubject(ctx context.Context, subjectID id.SubjectID) (*subject.Subject, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "subject id is required")
	}
	subj, err := s.subjects.FindByID(ctx, subjectID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "subject not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subject")
	}
	return subj, nil
}

package consent

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"custodia/internal/audit"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/tx"
)

// Metadata carries optional request context recorded alongside a decision.
type Metadata struct {
	Origin          string
	ClientSignature string
}

// Service maintains the consent ledger. It keeps orchestration out of
// handlers and domain logic thin: every toggle appends a record and its audit
// entry inside one transaction.
type Service struct {
	store  Store
	audits *audit.Publisher
	txr    tx.Runner
	logger *slog.Logger
}

func NewService(store Store, audits *audit.Publisher, txr tx.Runner, logger *slog.Logger) *Service {
	return &Service{store: store, audits: audits, txr: txr, logger: logger}
}

// Set appends a consent decision for the purpose. Consent is opt-in: nothing
// is assumed until a granted record exists.
func (s *Service) Set(ctx context.Context, subjectID id.SubjectID, purpose id.ConsentPurpose, granted bool, meta Metadata) (*Record, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "subject id is required")
	}
	if !purpose.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid purpose: "+purpose.String())
	}

	record := Record{
		ID:              uuid.New(),
		SubjectID:       subjectID,
		Purpose:         purpose,
		Granted:         granted,
		RecordedAt:      time.Now(),
		Origin:          meta.Origin,
		ClientSignature: meta.ClientSignature,
	}

	action := audit.ActionConsentGranted
	if !granted {
		action = audit.ActionConsentRevoked
	}

	err := s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Append(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append consent record")
		}
		return s.audits.Emit(ctx, audit.Entry{
			ActorID:    subjectID.String(),
			Action:     action,
			EntityType: audit.EntityConsent,
			EntityID:   record.ID.String(),
			Details: map[string]string{
				"purpose": purpose.String(),
				"granted": strconv.FormatBool(granted),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Get reports the authoritative decision for the purpose. Defaults to false
// when the subject never recorded one.
func (s *Service) Get(ctx context.Context, subjectID id.SubjectID, purpose id.ConsentPurpose) (bool, error) {
	if !purpose.IsValid() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "invalid purpose: "+purpose.String())
	}
	current, err := s.store.Current(ctx, subjectID, purpose)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
	}
	if current == nil {
		return false, nil
	}
	return current.Granted, nil
}

// History returns the subject's full ledger, oldest first.
func (s *Service) History(ctx context.Context, subjectID id.SubjectID) ([]Record, error) {
	records, err := s.store.History(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consent history")
	}
	return records, nil
}

package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"custodia/internal/consent"
	"custodia/internal/privacy"
	"custodia/internal/retention"
	"custodia/internal/verification"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Service interfaces are declared transport-side so handler tests can swap
// stubs without touching the real services.

type IntakeService interface {
	Submit(ctx context.Context, sub verification.Submission) (*verification.Request, error)
	FindForSubject(ctx context.Context, verificationID id.VerificationID, subjectID id.SubjectID) (*verification.Request, error)
}

type ReviewService interface {
	Review(ctx context.Context, verificationID id.VerificationID, reviewerID string, approved bool, rejectionReason string) (*verification.Request, error)
	ReviewBatch(ctx context.Context, verificationIDs []id.VerificationID, reviewerID string) (*verification.BatchResult, error)
}

type ConsentService interface {
	Set(ctx context.Context, subjectID id.SubjectID, purpose id.ConsentPurpose, granted bool, meta consent.Metadata) (*consent.Record, error)
	History(ctx context.Context, subjectID id.SubjectID) ([]consent.Record, error)
}

type PrivacyService interface {
	Export(ctx context.Context, subjectID id.SubjectID) (*privacy.ExportBundle, error)
	Anonymize(ctx context.Context, subjectID id.SubjectID) (*privacy.AnonymizationResult, error)
	HardDelete(ctx context.Context, subjectID id.SubjectID) (*privacy.DeletionResult, error)
}

type SweepService interface {
	Sweep(ctx context.Context, now time.Time) (retention.Result, error)
}

// Handler is the thin HTTP layer. It delegates to the services without
// embedding business logic so transport concerns remain isolated.
type Handler struct {
	intake   IntakeService
	reviews  ReviewService
	consents ConsentService
	privacy  PrivacyService
	sweeps   SweepService
	logger   *slog.Logger
}

func NewHandler(
	intake IntakeService,
	reviews ReviewService,
	consents ConsentService,
	privacySvc PrivacyService,
	sweeps SweepService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		intake:   intake,
		reviews:  reviews,
		consents: consents,
		privacy:  privacySvc,
		sweeps:   sweeps,
		logger:   logger,
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation so every endpoint returns
// the same JSON error envelope. Rate-limit errors additionally surface the
// retry time as a header.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	if meta := dErrors.MetaOf(err); meta != nil {
		if resetAt, ok := meta["reset_at"]; ok {
			w.Header().Set("Retry-After", resetAt)
		}
	}
	writeJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}

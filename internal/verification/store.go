package verification

import (
	"context"
	"time"

	id "custodia/pkg/domain"
)

// Store persists verification requests. The store, not the application, is
// the arbiter of the concurrency invariants: Create enforces the single-open-
// request rule and the Mark methods are conditional writes that fail when the
// status moved underneath the caller.
//
// Stores return sentinel errors; services translate them into domain errors.
type Store interface {
	// Create inserts a PENDING request. Returns sentinel.ErrConflict when
	// the subject already has an open request.
	Create(ctx context.Context, req *Request) error
	FindByID(ctx context.Context, verificationID id.VerificationID) (*Request, error)
	FindPendingBySubject(ctx context.Context, subjectID id.SubjectID) (*Request, error)
	// ListBySubject returns the subject's full history, oldest first.
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*Request, error)

	// MarkReviewed conditionally finalizes a PENDING request. Returns
	// sentinel.ErrInvalidState when the request is no longer pending.
	MarkReviewed(ctx context.Context, verificationID id.VerificationID, status id.VerificationStatus, reviewerID, rejectionReason string, reviewedAt time.Time) error
	// MarkExpired conditionally expires an APPROVED request.
	MarkExpired(ctx context.Context, verificationID id.VerificationID, expiredAt time.Time) error
	// MarkWarned records that a retention warning went out.
	MarkWarned(ctx context.Context, verificationID id.VerificationID, warnedAt time.Time) error

	// ListApprovedReviewedBetween returns APPROVED requests reviewed in
	// (from, to]; the retention sweep's warning window.
	ListApprovedReviewedBetween(ctx context.Context, from, to time.Time) ([]*Request, error)
	// ListApprovedReviewedBefore returns APPROVED requests reviewed at or
	// before the cutoff; the retention sweep's expiry set.
	ListApprovedReviewedBefore(ctx context.Context, cutoff time.Time) ([]*Request, error)

	// RedactDocumentNumbers blanks document numbers for anonymization;
	// returns the number of requests touched.
	RedactDocumentNumbers(ctx context.Context, subjectID id.SubjectID) (int, error)
	// DeleteBySubject removes the subject's requests as part of the hard
	// deletion cascade; returns the number removed.
	DeleteBySubject(ctx context.Context, subjectID id.SubjectID) (int, error)
}

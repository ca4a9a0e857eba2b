package subject

import (
	"context"
	"time"

	id "custodia/pkg/domain"
)

// Store persists subject profiles. Stores return sentinel errors; services
// translate them into domain errors.
type Store interface {
	Save(ctx context.Context, s *Subject) error
	FindByID(ctx context.Context, subjectID id.SubjectID) (*Subject, error)
	// SetVerified flips the identity-verified flag. Called inside the same
	// transaction as the approval status write.
	SetVerified(ctx context.Context, subjectID id.SubjectID, verifiedAt time.Time) error
	Delete(ctx context.Context, subjectID id.SubjectID) error
}

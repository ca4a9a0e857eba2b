package domain

import (
	"github.com/google/uuid"

	dErrors "custodia/pkg/domain-errors"
)

// Typed IDs prevent cross-entity assignment at compile time. Construct via
// the Parse functions at trust boundaries; direct casting bypasses validation.

// SubjectID identifies the end user whose identity and personal data is
// being managed.
type SubjectID uuid.UUID

// VerificationID identifies one document-submission-and-review cycle.
type VerificationID uuid.UUID

func NewSubjectID() SubjectID           { return SubjectID(uuid.New()) }
func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }

// ParseSubjectID constructs a SubjectID from external input.
// IDs must be valid, non-empty, non-nil UUIDs.
func ParseSubjectID(s string) (SubjectID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SubjectID{}, err
	}
	return SubjectID(u), nil
}

// ParseVerificationID constructs a VerificationID from external input.
func ParseVerificationID(s string) (VerificationID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return VerificationID{}, err
	}
	return VerificationID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be nil")
	}
	return u, nil
}

func (id SubjectID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SubjectID) String() string { return uuid.UUID(id).String() }

func (id VerificationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id VerificationID) String() string { return uuid.UUID(id).String() }

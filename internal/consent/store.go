package consent

import (
	"context"

	id "custodia/pkg/domain"
)

// Store persists the append-only consent ledger. Current returns the
// authoritative record for a (subject, purpose) pair, or nil when the subject
// never recorded a decision for that purpose.
type Store interface {
	Append(ctx context.Context, record Record) error
	Current(ctx context.Context, subjectID id.SubjectID, purpose id.ConsentPurpose) (*Record, error)
	// History returns the full ledger for a subject, oldest first.
	History(ctx context.Context, subjectID id.SubjectID) ([]Record, error)
	// RedactMetadata blanks request metadata on all of a subject's records.
	// Used by anonymization; returns the number of records touched.
	RedactMetadata(ctx context.Context, subjectID id.SubjectID) (int, error)
	// DeleteBySubject removes the subject's ledger as part of the hard
	// deletion cascade; returns the number of records removed.
	DeleteBySubject(ctx context.Context, subjectID id.SubjectID) (int, error)
}

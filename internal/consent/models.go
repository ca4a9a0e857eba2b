package consent

import (
	"time"

	"github.com/google/uuid"

	id "custodia/pkg/domain"
)

// Record captures one consent decision for a specific purpose. The ledger is
// append-only: every toggle appends a new record and the most recent record
// per (subject, purpose) is authoritative.
type Record struct {
	ID         uuid.UUID
	SubjectID  id.SubjectID
	Purpose    id.ConsentPurpose
	Granted    bool
	RecordedAt time.Time

	// Request metadata kept for evidencing how consent was captured.
	Origin          string
	ClientSignature string
}

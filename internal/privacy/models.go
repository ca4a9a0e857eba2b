package privacy

import (
	"time"

	"custodia/internal/audit"
	"custodia/internal/consent"
	"custodia/internal/subject"
	"custodia/internal/verification"
)

// ExportBundle aggregates everything the system holds about one subject.
type ExportBundle struct {
	GeneratedAt   time.Time
	Subject       *subject.Subject
	Verifications []*verification.Request
	Consents      []consent.Record
	AuditTrail    []audit.Entry
}

// AnonymizationResult counts the entities redacted, per type.
type AnonymizationResult struct {
	SubjectsRedacted      int
	VerificationsRedacted int
	ConsentsRedacted      int
}

// DeletionResult counts the cascade, leaf entities first.
type DeletionResult struct {
	ConsentsDeleted      int
	VerificationsDeleted int
	SubjectDeleted       bool
}

// Redacted is the sentinel written over direct identifiers during
// anonymization.
const Redacted = "[redacted]"

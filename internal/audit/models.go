package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action tags the compliance-relevant mutation an entry records.
type Action string

const (
	ActionVerificationSubmitted Action = "VERIFICATION_SUBMITTED"
	ActionVerificationApproved  Action = "VERIFICATION_APPROVED"
	ActionVerificationRejected  Action = "VERIFICATION_REJECTED"
	ActionVerificationExpired   Action = "VERIFICATION_EXPIRED"
	ActionConsentGranted        Action = "CONSENT_GRANTED"
	ActionConsentRevoked        Action = "CONSENT_REVOKED"
	ActionDataExportRequested   Action = "DATA_EXPORT_REQUESTED"
	ActionSubjectAnonymized     Action = "SUBJECT_ANONYMIZED"
	ActionSubjectDeleted        Action = "SUBJECT_DELETED"
)

// Entity types an entry may reference. The reference is weak and non-owning,
// used only for lookup and reporting.
const (
	EntityVerification = "verification"
	EntityConsent      = "consent"
	EntitySubject      = "subject"
)

// ActorSystem is the actor ID recorded for background mutations such as the
// retention sweep.
const ActorSystem = "system"

// Entry is an append-only record of a mutating operation. Entries are never
// mutated or deleted after write; ordering by timestamp is the canonical
// history.
type Entry struct {
	ID         uuid.UUID
	ActorID    string
	Action     Action
	EntityType string
	EntityID   string
	Timestamp  time.Time
	Details    map[string]string
}

package verification

import (
	"time"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Request is one document-submission-and-review cycle.
//
// Invariants:
//   - exactly one PENDING request per subject at any time, enforced by the
//     store's conditional insert
//   - BackKey is set iff Kind requires a back image
//   - RejectionReason is non-empty iff Status is REJECTED
//   - ReviewedAt and ReviewerID are both set or both absent
type Request struct {
	ID        id.VerificationID
	SubjectID id.SubjectID

	Kind           id.DocumentKind
	DocumentNumber string

	FrontKey  string
	BackKey   string
	SelfieKey string

	Status          id.VerificationStatus
	RejectionReason string
	ReviewerID      string

	CreatedAt  time.Time
	ReviewedAt *time.Time
	// WarnedAt records the last retention warning so repeated sweeps within
	// the same day do not re-send.
	WarnedAt  *time.Time
	UpdatedAt time.Time
}

// BlobKeys returns the document storage keys, skipping the absent back image.
func (r *Request) BlobKeys() []string {
	keys := []string{r.FrontKey, r.SelfieKey}
	if r.BackKey != "" {
		keys = append(keys, r.BackKey)
	}
	return keys
}

// Event drives the request state machine.
type Event string

const (
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventExpire  Event = "expire"
)

// transitions is the single source of truth for legal status changes. Every
// caller routes through Transition instead of assigning statuses ad hoc.
var transitions = map[id.VerificationStatus]map[Event]id.VerificationStatus{
	id.VerificationStatusPending: {
		EventApprove: id.VerificationStatusApproved,
		EventReject:  id.VerificationStatusRejected,
	},
	id.VerificationStatusApproved: {
		// Only the retention sweep drives this transition.
		EventExpire: id.VerificationStatusExpired,
	},
}

// Transition validates the event against the current status and returns the
// next status.
//
// Errors: CodeNotPending when a review event hits a non-PENDING request;
// CodeConflict for any other illegal transition.
func Transition(current id.VerificationStatus, event Event) (id.VerificationStatus, error) {
	next, ok := transitions[current][event]
	if !ok {
		if event == EventApprove || event == EventReject {
			return "", dErrors.New(dErrors.CodeNotPending, "verification is not pending")
		}
		return "", dErrors.New(dErrors.CodeConflict, "illegal transition from "+current.String())
	}
	return next, nil
}

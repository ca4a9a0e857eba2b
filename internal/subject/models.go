package subject

import (
	"time"

	id "custodia/pkg/domain"
)

// Subject is the end user whose identity documents and personal data are
// managed. Direct identifiers (email, name, phone, bio) are redacted by
// anonymization; the behavioral counters survive it for statistical
// integrity.
type Subject struct {
	ID       id.SubjectID
	Email    string
	FullName string
	Phone    string
	Bio      string

	Verified   bool
	VerifiedAt *time.Time
	Anonymized bool

	Followers        int
	Following        int
	TicketsPurchased int

	CreatedAt time.Time
	UpdatedAt time.Time
}

package domain

// VerificationStatus is the workflow state of a verification request.
// PENDING is the only open state; APPROVED, REJECTED and EXPIRED are terminal
// except for the APPROVED -> EXPIRED transition driven by the retention sweep.
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "PENDING"
	VerificationStatusApproved VerificationStatus = "APPROVED"
	VerificationStatusRejected VerificationStatus = "REJECTED"
	VerificationStatusExpired  VerificationStatus = "EXPIRED"
)

var validVerificationStatuses = map[VerificationStatus]bool{
	VerificationStatusPending:  true,
	VerificationStatusApproved: true,
	VerificationStatusRejected: true,
	VerificationStatusExpired:  true,
}

// IsValid checks if the status is one of the supported enum values.
func (s VerificationStatus) IsValid() bool {
	return validVerificationStatuses[s]
}

// IsOpen reports whether the request still awaits review.
func (s VerificationStatus) IsOpen() bool {
	return s == VerificationStatusPending
}

// String returns the string representation of the status.
func (s VerificationStatus) String() string {
	return string(s)
}

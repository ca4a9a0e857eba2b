package domain

import dErrors "custodia/pkg/domain-errors"

// ConsentPurpose is a domain value that identifies why data is processed.
// Purpose binding allows selective revocation without affecting other flows.
//
// Usage: construct via ParseConsentPurpose at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type ConsentPurpose string

// Supported consent purposes.
const (
	ConsentPurposeMarketingEmail    ConsentPurpose = "MARKETING_EMAIL"
	ConsentPurposeMarketingSMS      ConsentPurpose = "MARKETING_SMS"
	ConsentPurposeProfiling         ConsentPurpose = "PROFILING"
	ConsentPurposeThirdPartySharing ConsentPurpose = "THIRD_PARTY_SHARING"
	ConsentPurposeAnalytics         ConsentPurpose = "ANALYTICS"
)

// validConsentPurposes is the single source of truth for valid consent purposes.
var validConsentPurposes = map[ConsentPurpose]bool{
	ConsentPurposeMarketingEmail:    true,
	ConsentPurposeMarketingSMS:      true,
	ConsentPurposeProfiling:         true,
	ConsentPurposeThirdPartySharing: true,
	ConsentPurposeAnalytics:         true,
}

// ParseConsentPurpose constructs a ConsentPurpose from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseConsentPurpose(s string) (ConsentPurpose, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purpose cannot be empty")
	}
	p := ConsentPurpose(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid purpose")
	}
	return p, nil
}

// IsValid checks if the consent purpose is one of the supported enum values.
func (p ConsentPurpose) IsValid() bool {
	return validConsentPurposes[p]
}

// String returns the string representation of the purpose.
func (p ConsentPurpose) String() string {
	return string(p)
}

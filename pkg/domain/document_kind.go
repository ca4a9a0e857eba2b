package domain

import dErrors "custodia/pkg/domain-errors"

// DocumentKind is the category of identity document submitted for review.
// Invariant: the value must be one of the supported kinds.
//
// Usage: construct via ParseDocumentKind at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type DocumentKind string

// Supported document kinds.
const (
	DocumentKindNationalID    DocumentKind = "NATIONAL_ID"
	DocumentKindPassport      DocumentKind = "PASSPORT"
	DocumentKindDriverLicense DocumentKind = "DRIVER_LICENSE"
)

// validDocumentKinds is the single source of truth for valid kinds.
var validDocumentKinds = map[DocumentKind]bool{
	DocumentKindNationalID:    true,
	DocumentKindPassport:      true,
	DocumentKindDriverLicense: true,
}

// ParseDocumentKind constructs a DocumentKind from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseDocumentKind(s string) (DocumentKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document kind cannot be empty")
	}
	k := DocumentKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid document kind")
	}
	return k, nil
}

// IsValid checks if the kind is one of the supported enum values.
func (k DocumentKind) IsValid() bool {
	return validDocumentKinds[k]
}

// RequiresBack reports whether this kind needs a back-side document image.
// Only national IDs carry information on the reverse side.
func (k DocumentKind) RequiresBack() bool {
	return k == DocumentKindNationalID
}

// String returns the string representation of the kind.
func (k DocumentKind) String() string {
	return string(k)
}

package testutil

import (
	"context"
	"net/http"

	id "custodia/pkg/domain"
	authmw "custodia/pkg/platform/middleware/auth"
)

// WithSubject adds a subject ID and role to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the subjectID is not a valid UUID, it will not be added to the context.
func WithSubject(req *http.Request, subjectID string, role authmw.Role) *http.Request {
	ctx := req.Context()
	if parsed, err := id.ParseSubjectID(subjectID); err == nil {
		ctx = context.WithValue(ctx, authmw.ContextKeySubjectID, parsed)
	}
	if role != "" {
		ctx = context.WithValue(ctx, authmw.ContextKeyRole, role)
	}
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}

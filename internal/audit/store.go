package audit

import "context"

// Store persists audit entries. The interface is append-only; entries are
// never updated or deleted.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error)
	ListByActor(ctx context.Context, actorID string) ([]Entry, error)
}

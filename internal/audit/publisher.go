package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	dErrors "custodia/pkg/domain-errors"
)

// Publisher captures structured audit entries. It is append-only and uses the
// store for persistence so tests can swap sinks easily. Audit writes are part
// of the mutating transaction they describe, never best-effort.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	// No entry may reference a future timestamp; allow a small skew for
	// clock drift between callers.
	if entry.Timestamp.After(time.Now().Add(time.Second)) {
		return dErrors.New(dErrors.CodeInvalidInput, "audit timestamp must not be in the future")
	}
	return p.store.Append(ctx, entry)
}

// ListByEntity returns the history for one entity, oldest first.
func (p *Publisher) ListByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error) {
	return p.store.ListByEntity(ctx, entityType, entityID)
}

// ListByActor returns all entries recorded for one actor, oldest first.
func (p *Publisher) ListByActor(ctx context.Context, actorID string) ([]Entry, error) {
	return p.store.ListByActor(ctx, actorID)
}

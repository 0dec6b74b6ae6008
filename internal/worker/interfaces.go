package worker

import (
	"context"

	"groupwarden.app/warden/internal/model"
	"groupwarden.app/warden/internal/service"
)

// EnrichedCache is the slice of the recency cache the worker touches.
// Implemented by cache.Layers.
type EnrichedCache interface {
	AppendUserGroupEnriched(ctx context.Context, userID, groupID int64, item model.EnrichedSummary) error
	SetTaskStatus(ctx context.Context, messageID int64, status string) error
}

// ContextBuilder mirrors service.ContextBuilder's entry point.
type ContextBuilder interface {
	BuildContext(ctx context.Context, userID, groupID int64, newMessage model.CachedMessage) (*service.ContextBundle, error)
}

// Moderator mirrors service.Moderator's entry point.
type Moderator interface {
	EvaluateVerdict(ctx context.Context, verdict model.Verdict, bundle *service.ContextBundle) (model.Action, error)
}

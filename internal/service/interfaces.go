package service

import (
	"context"
	"time"

	"groupwarden.app/warden/internal/model"
)

// RecencyCache is the read/write surface of the layered recency cache
// consumed by the context builder and the moderation engine.
// Implemented by cache.Layers.
type RecencyCache interface {
	RecentGroupMessages(ctx context.Context, groupID int64) ([]model.CachedMessage, error)
	RecentUserGroupMessages(ctx context.Context, userID, groupID int64) ([]model.CachedMessage, error)
	RecentUserGroupEnriched(ctx context.Context, userID, groupID int64) ([]model.EnrichedSummary, error)
	RecentUserGlobal(ctx context.Context, userID int64) ([]model.CachedMessage, error)
	GroupState(ctx context.Context, groupID int64) (*model.GroupState, error)
	GroupConfig(ctx context.Context, groupID int64) (*model.GroupConfigSnapshot, error)

	CooldownActive(ctx context.Context, groupID int64) (bool, error)
	SetCooldown(ctx context.Context, groupID int64, ttl time.Duration) error

	Reputation(ctx context.Context, userID, groupID int64) (int, bool, error)
	SetReputation(ctx context.Context, userID, groupID int64, score int) error
}

// Rehydrator rebuilds a group's caches from the durable store.
// Implemented by cache.Rehydrator.
type Rehydrator interface {
	RehydrateGroup(ctx context.Context, chatID int64, limit int, clear bool) error
}

// Notifier sends a moderation notice into a group chat. Platform-specific;
// injected by the caller.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// MessageDeleter removes a message by its platform-native identifier.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, chatID, platformMessageID int64) error
}

// Classifier produces a spam verdict for an assembled context.
type Classifier interface {
	Classify(ctx context.Context, bundle *ContextBundle) (model.Verdict, error)
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"groupwarden.app/warden/common/logger"
	"groupwarden.app/warden/internal/model"
	"groupwarden.app/warden/internal/store"
)

// Rehydrator repopulates the recency caches from the durable store after
// evictions, staleness or explicit invalidation. Rehydration is best-effort:
// a failed downstream write never aborts the remaining replay, and repeated
// runs against an unchanged store converge to the same cache content.
type Rehydrator struct {
	layers   *Layers
	groups   store.GroupStore
	configs  store.GroupConfigStore
	messages store.MessageStore
}

func NewRehydrator(layers *Layers, groups store.GroupStore, configs store.GroupConfigStore, messages store.MessageStore) *Rehydrator {
	return &Rehydrator{
		layers:   layers,
		groups:   groups,
		configs:  configs,
		messages: messages,
	}
}

// RehydrateGroup rebuilds one group's caches: optionally clears the group's
// windows (including every per-user window scoped to the group), re-derives
// the state and config snapshots, then replays the newest limit durable
// messages oldest-first so append order stays chronological.
func (r *Rehydrator) RehydrateGroup(ctx context.Context, chatID int64, limit int, clear bool) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		GroupID:   logger.Ptr(chatID),
		Component: "warden.cache.rehydrator",
	})

	if clear {
		if err := r.layers.ClearGroup(ctx, chatID); err != nil {
			slog.WarnContext(ctx, "clearing group caches failed", "error", err)
		}
	}

	r.rehydrateSnapshots(ctx, chatID)
	return r.replayMessages(ctx, chatID, limit)
}

// RehydrateAll optionally flushes the whole cache namespace, then rebuilds
// every known group sequentially.
func (r *Rehydrator) RehydrateAll(ctx context.Context, limit int, clear, flushAll bool) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "warden.cache.rehydrator"})

	if flushAll {
		if err := r.layers.Store().FlushAll(ctx); err != nil {
			slog.WarnContext(ctx, "cache flush failed", "error", err)
		}
	}

	chatIDs, err := r.groups.ListChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing groups: %w", err)
	}

	for _, chatID := range chatIDs {
		if err := r.RehydrateGroup(ctx, chatID, limit, clear); err != nil {
			slog.ErrorContext(ctx, "group rehydration failed", "group_id", chatID, "error", err)
		}
	}

	slog.InfoContext(ctx, "rehydrated all groups", "groups", len(chatIDs))
	return nil
}

func (r *Rehydrator) rehydrateSnapshots(ctx context.Context, chatID int64) {
	group, err := r.groups.GetByChatID(ctx, chatID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "loading group failed", "error", err)
		}
		return
	}

	state := model.GroupState{
		ID:        group.ID,
		ChatID:    group.ChatID,
		Name:      group.Name,
		HasConfig: group.HasConfig,
	}
	if err := r.layers.SetGroupState(ctx, chatID, state); err != nil {
		slog.WarnContext(ctx, "writing group state snapshot failed", "error", err)
	}

	cfg, err := r.configs.GetByGroupID(ctx, group.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "loading group config failed", "error", err)
		}
		return
	}

	if err := r.layers.SetGroupConfig(ctx, chatID, model.SnapshotFromConfig(cfg)); err != nil {
		slog.WarnContext(ctx, "writing group config snapshot failed", "error", err)
	}
}

func (r *Rehydrator) replayMessages(ctx context.Context, chatID int64, limit int) error {
	msgs, err := r.messages.ListRecentByGroup(ctx, chatID, limit)
	if err != nil {
		return fmt.Errorf("listing recent messages: %w", err)
	}

	// ListRecentByGroup returns newest first; replay oldest first.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		cached := model.CachedFromMessage(m)

		if err := r.layers.AppendGroupMessage(ctx, chatID, cached); err != nil {
			slog.WarnContext(ctx, "group window append failed", "message_id", m.ID, "error", err)
		}
		if err := r.layers.AppendUserGroupMessage(ctx, m.UserID, chatID, cached); err != nil {
			slog.WarnContext(ctx, "user-group window append failed", "message_id", m.ID, "error", err)
		}
		if err := r.layers.AppendUserGlobal(ctx, m.UserID, cached); err != nil {
			slog.WarnContext(ctx, "user-global window append failed", "message_id", m.ID, "error", err)
		}

		if model.IsMediaType(m.Type) {
			r.replayEnriched(ctx, chatID, m)
		}
	}

	slog.DebugContext(ctx, "replayed group messages", "count", len(msgs))
	return nil
}

func (r *Rehydrator) replayEnriched(ctx context.Context, chatID int64, m model.Message) {
	asset, err := r.messages.GetMediaAsset(ctx, m.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "loading media asset failed", "message_id", m.ID, "error", err)
		}
		return
	}
	if asset.Summary == nil || *asset.Summary == "" {
		return
	}

	item := model.EnrichedSummary{
		ID:        m.ID,
		Summary:   *asset.Summary,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := r.layers.AppendUserGroupEnriched(ctx, m.UserID, chatID, item); err != nil {
		slog.WarnContext(ctx, "enriched window append failed", "message_id", m.ID, "error", err)
	}
}


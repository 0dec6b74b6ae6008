package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"groupwarden.app/warden/common/logger"
	"groupwarden.app/warden/core/config"
	"groupwarden.app/warden/internal/model"
	"groupwarden.app/warden/internal/store"
)

// FrequencyScores is the behavioral signal pair computed per bundle.
type FrequencyScores struct {
	WithinGroup  float64 `json:"within_group"`
	AcrossGroups float64 `json:"across_groups"`
}

// ContextBundle is the ephemeral per-message aggregate handed to downstream
// consumers. Created fresh for every message, never persisted.
type ContextBundle struct {
	GroupID             int64
	GroupDescription    string
	GroupConfig         *model.GroupConfigSnapshot
	GroupState          *model.GroupState
	RecentGroupMessages []model.CachedMessage
	RecentUserMessages  []model.CachedMessage
	RecentUserEnriched  []model.EnrichedSummary
	UserGlobalActivity  []model.CachedMessage
	NewMessage          model.CachedMessage
	Frequency           FrequencyScores
}

// ContextBuilder assembles ContextBundles from the recency caches, falling
// back to the durable store for critical fields and triggering rehydration
// when the group window is stale or thin.
type ContextBuilder struct {
	cache      RecencyCache
	rehydrator Rehydrator
	groups     store.GroupStore
	configs    store.GroupConfigStore
	cfg        config.ContextConfig
}

func NewContextBuilder(cache RecencyCache, rehydrator Rehydrator, groups store.GroupStore, configs store.GroupConfigStore, cfg config.ContextConfig) *ContextBuilder {
	return &ContextBuilder{
		cache:      cache,
		rehydrator: rehydrator,
		groups:     groups,
		configs:    configs,
		cfg:        cfg,
	}
}

// BuildContext fans out the six cache reads concurrently, applies the
// staleness guard, resolves critical fields and computes frequency scores.
// Cache failures degrade to empty results; only a durable-store failure on
// a critical field surfaces as a missing config/state.
func (b *ContextBuilder) BuildContext(ctx context.Context, userID, groupID int64, newMessage model.CachedMessage) (*ContextBundle, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		GroupID:   logger.Ptr(groupID),
		Component: "warden.service.context_builder",
	})

	var (
		wg           sync.WaitGroup
		groupMsgs    []model.CachedMessage
		userMsgs     []model.CachedMessage
		userEnriched []model.EnrichedSummary
		userGlobal   []model.CachedMessage
		groupConfig  *model.GroupConfigSnapshot
		groupState   *model.GroupState
	)

	// The six-way fan-out is the latency budget control: all reads run
	// concurrently and each degrades to empty on its own failure.
	fetch := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			readCtx, cancel := context.WithTimeout(ctx, b.cfg.ReadTimeout)
			defer cancel()
			if err := fn(readCtx); err != nil {
				slog.DebugContext(ctx, "cache read degraded to empty", "read", name, "error", err)
			}
		}()
	}

	fetch("group_messages", func(ctx context.Context) (err error) {
		groupMsgs, err = b.cache.RecentGroupMessages(ctx, groupID)
		return err
	})
	fetch("user_group_messages", func(ctx context.Context) (err error) {
		userMsgs, err = b.cache.RecentUserGroupMessages(ctx, userID, groupID)
		return err
	})
	fetch("user_group_enriched", func(ctx context.Context) (err error) {
		userEnriched, err = b.cache.RecentUserGroupEnriched(ctx, userID, groupID)
		return err
	})
	fetch("group_config", func(ctx context.Context) (err error) {
		groupConfig, err = b.cache.GroupConfig(ctx, groupID)
		return err
	})
	fetch("group_state", func(ctx context.Context) (err error) {
		groupState, err = b.cache.GroupState(ctx, groupID)
		return err
	})
	fetch("user_global", func(ctx context.Context) (err error) {
		userGlobal, err = b.cache.RecentUserGlobal(ctx, userID)
		return err
	})
	wg.Wait()

	groupMsgs, empty := b.guardStaleness(ctx, groupID, groupMsgs)
	if empty {
		return &ContextBundle{GroupID: groupID, NewMessage: newMessage}, nil
	}

	// Config and state are critical: fall back to the durable store rather
	// than hand downstream a bundle without them.
	if groupConfig == nil {
		groupConfig = b.fetchConfig(ctx, groupID)
	}
	if groupState == nil {
		groupState = b.fetchState(ctx, groupID)
	}

	description := ""
	if groupConfig != nil {
		description = groupConfig.GroupDescription
	}

	return &ContextBundle{
		GroupID:             groupID,
		GroupDescription:    description,
		GroupConfig:         groupConfig,
		GroupState:          groupState,
		RecentGroupMessages: groupMsgs,
		RecentUserMessages:  userMsgs,
		RecentUserEnriched:  userEnriched,
		UserGlobalActivity:  userGlobal,
		NewMessage:          newMessage,
		Frequency: FrequencyScores{
			WithinGroup:  FrequencyScore(createdTimes(userMsgs), b.cfg.FrequencyTau),
			AcrossGroups: FrequencyScore(createdTimes(userGlobal), b.cfg.FrequencyTau),
		},
	}, nil
}

// guardStaleness triggers rehydration when the group window is empty, thin
// or stale, unless the per-group cooldown flag is set. Returns the (possibly
// refreshed) window and whether the caller should return an empty bundle
// because the durable store itself turned out empty.
func (b *ContextBuilder) guardStaleness(ctx context.Context, groupID int64, groupMsgs []model.CachedMessage) ([]model.CachedMessage, bool) {
	cooldown, err := b.cache.CooldownActive(ctx, groupID)
	if err != nil {
		slog.DebugContext(ctx, "cooldown check failed", "error", err)
		return groupMsgs, false
	}
	if cooldown {
		return groupMsgs, false
	}

	if len(groupMsgs) >= b.cfg.MinContextMsgs && !b.isStale(groupMsgs) {
		return groupMsgs, false
	}

	slog.InfoContext(ctx, "group cache stale or thin, rehydrating")
	if err := b.rehydrator.RehydrateGroup(ctx, groupID, b.cfg.RehydrateLimit, true); err != nil {
		slog.ErrorContext(ctx, "rehydration failed", "error", err)
		return groupMsgs, false
	}

	refreshed, err := b.cache.RecentGroupMessages(ctx, groupID)
	if err != nil {
		slog.DebugContext(ctx, "post-rehydration read failed", "error", err)
		return groupMsgs, false
	}
	if len(refreshed) == 0 {
		// The durable store is genuinely empty for this group. Flag the
		// cooldown so the next messages don't repeat the expensive attempt.
		slog.WarnContext(ctx, "durable store empty for group, setting rehydration cooldown")
		if err := b.cache.SetCooldown(ctx, groupID, b.cfg.EmptyDBCooldown); err != nil {
			slog.DebugContext(ctx, "setting cooldown failed", "error", err)
		}
		return nil, true
	}
	return refreshed, false
}

// isStale reports whether the newest parseable timestamp in the window is
// older than the configured staleness window. Windows without parseable
// timestamps are not considered stale; emptiness is checked separately.
func (b *ContextBuilder) isStale(msgs []model.CachedMessage) bool {
	var newest time.Time
	for _, m := range msgs {
		if t, ok := parseTimestamp(m.CreatedAt); ok && t.After(newest) {
			newest = t
		}
	}
	if newest.IsZero() {
		return false
	}
	return time.Since(newest) > b.cfg.StaleWindow
}

func (b *ContextBuilder) fetchConfig(ctx context.Context, groupID int64) *model.GroupConfigSnapshot {
	group, err := b.groups.GetByChatID(ctx, groupID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.ErrorContext(ctx, "config fallback: loading group failed", "error", err)
		}
		return nil
	}
	cfg, err := b.configs.GetByGroupID(ctx, group.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.ErrorContext(ctx, "config fallback: loading config failed", "error", err)
		}
		return nil
	}
	snapshot := model.SnapshotFromConfig(cfg)
	return &snapshot
}

func (b *ContextBuilder) fetchState(ctx context.Context, groupID int64) *model.GroupState {
	group, err := b.groups.GetByChatID(ctx, groupID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.ErrorContext(ctx, "state fallback: loading group failed", "error", err)
		}
		return nil
	}
	return &model.GroupState{
		ID:        group.ID,
		ChatID:    group.ChatID,
		Name:      group.Name,
		HasConfig: group.HasConfig,
	}
}

func createdTimes(msgs []model.CachedMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.CreatedAt
	}
	return out
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"groupwarden.app/warden/core/config"
	"groupwarden.app/warden/internal/model"
)

// Layers exposes the seven logical recency caches plus the reputation,
// cooldown and rate-limit scalars, all built on a Store. Window reads
// return items deduplicated by id (most recent occurrence wins) in
// chronological order; items that fail to parse are skipped.
type Layers struct {
	store Store
	cfg   config.CacheConfig
	rate  config.RateLimitConfig
}

func NewLayers(store Store, cfg config.CacheConfig, rate config.RateLimitConfig) *Layers {
	return &Layers{store: store, cfg: cfg, rate: rate}
}

// Store returns the underlying adapter, for collaborators that need the
// raw primitives (flush, pattern deletes).
func (l *Layers) Store() Store {
	return l.store
}

// --- User-in-group messages -------------------------------------------------

func (l *Layers) AppendUserGroupMessage(ctx context.Context, userID, groupID int64, msg model.CachedMessage) error {
	return appendJSON(ctx, l.store, keyUserGroup(userID, groupID), msg, l.cfg.UserLimit, l.cfg.UserTTL)
}

func (l *Layers) RecentUserGroupMessages(ctx context.Context, userID, groupID int64) ([]model.CachedMessage, error) {
	return readWindow(ctx, l.store, keyUserGroup(userID, groupID), l.cfg.UserLimit, messageID)
}

// --- User-in-group enriched summaries ---------------------------------------

func (l *Layers) AppendUserGroupEnriched(ctx context.Context, userID, groupID int64, item model.EnrichedSummary) error {
	return appendJSON(ctx, l.store, keyUserGroupEnriched(userID, groupID), item, l.cfg.EnrichLimit, l.cfg.UserGlobalTTL)
}

func (l *Layers) RecentUserGroupEnriched(ctx context.Context, userID, groupID int64) ([]model.EnrichedSummary, error) {
	return readWindow(ctx, l.store, keyUserGroupEnriched(userID, groupID), l.cfg.EnrichLimit, enrichedID)
}

// --- User global activity ---------------------------------------------------

func (l *Layers) AppendUserGlobal(ctx context.Context, userID int64, msg model.CachedMessage) error {
	return appendJSON(ctx, l.store, keyUserGlobal(userID), msg, l.cfg.UserLimit, l.cfg.UserGlobalTTL)
}

func (l *Layers) RecentUserGlobal(ctx context.Context, userID int64) ([]model.CachedMessage, error) {
	return readWindow(ctx, l.store, keyUserGlobal(userID), l.cfg.UserLimit, messageID)
}

// --- Group messages ---------------------------------------------------------

func (l *Layers) AppendGroupMessage(ctx context.Context, groupID int64, msg model.CachedMessage) error {
	return appendJSON(ctx, l.store, keyGroupMessages(groupID), msg, l.cfg.GroupMsgLimit, l.cfg.GroupMsgTTL)
}

func (l *Layers) RecentGroupMessages(ctx context.Context, groupID int64) ([]model.CachedMessage, error) {
	return readWindow(ctx, l.store, keyGroupMessages(groupID), l.cfg.GroupMsgLimit, messageID)
}

// --- Group state / config snapshots -----------------------------------------

func (l *Layers) SetGroupState(ctx context.Context, groupID int64, state model.GroupState) error {
	return setJSON(ctx, l.store, keyGroupState(groupID), state, l.cfg.GroupStateTTL)
}

// GroupState returns (nil, nil) when the snapshot is absent or unparseable.
func (l *Layers) GroupState(ctx context.Context, groupID int64) (*model.GroupState, error) {
	return getJSON[model.GroupState](ctx, l.store, keyGroupState(groupID))
}

func (l *Layers) SetGroupConfig(ctx context.Context, groupID int64, cfg model.GroupConfigSnapshot) error {
	return setJSON(ctx, l.store, keyGroupConfig(groupID), cfg, l.cfg.GroupConfigTTL)
}

func (l *Layers) GroupConfig(ctx context.Context, groupID int64) (*model.GroupConfigSnapshot, error) {
	return getJSON[model.GroupConfigSnapshot](ctx, l.store, keyGroupConfig(groupID))
}

// --- Task status ------------------------------------------------------------

func (l *Layers) SetTaskStatus(ctx context.Context, messageID int64, status string) error {
	return l.store.SetScalar(ctx, keyTaskStatus(messageID), status, l.cfg.TaskTTL)
}

func (l *Layers) TaskStatus(ctx context.Context, messageID int64) (string, bool, error) {
	return l.store.GetScalar(ctx, keyTaskStatus(messageID))
}

// --- Reputation -------------------------------------------------------------

// Reputation reads the cached score. No TTL is applied to reputation keys;
// they live until explicitly overwritten.
func (l *Layers) Reputation(ctx context.Context, userID, groupID int64) (int, bool, error) {
	raw, ok, err := l.store.GetScalar(ctx, keyReputation(userID, groupID))
	if err != nil || !ok {
		return 0, false, err
	}
	score, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, nil
	}
	return score, true, nil
}

func (l *Layers) SetReputation(ctx context.Context, userID, groupID int64, score int) error {
	return l.store.SetScalar(ctx, keyReputation(userID, groupID), strconv.Itoa(score), 0)
}

// --- Rehydration cooldown ---------------------------------------------------

func (l *Layers) CooldownActive(ctx context.Context, groupID int64) (bool, error) {
	_, ok, err := l.store.GetScalar(ctx, keyCooldown(groupID))
	return ok, err
}

func (l *Layers) SetCooldown(ctx context.Context, groupID int64, ttl time.Duration) error {
	return l.store.SetScalar(ctx, keyCooldown(groupID), "skip", ttl)
}

// --- Group rate limit -------------------------------------------------------

// ConsumeGroupToken takes one token from the group's bucket and returns the
// remainder. Zero means the group is over its message budget.
func (l *Layers) ConsumeGroupToken(ctx context.Context, groupID int64) (int64, error) {
	return l.store.TokenBucket(ctx, keyGroupRate(groupID), l.rate.Capacity, l.rate.RefillTokens, l.rate.RefillInterval)
}

// --- Clearing ---------------------------------------------------------------

// ClearGroup removes the group's state, config and message window plus every
// per-user window scoped to the group.
func (l *Layers) ClearGroup(ctx context.Context, groupID int64) error {
	if err := l.store.DeleteKeys(ctx,
		keyGroupState(groupID), keyGroupConfig(groupID), keyGroupMessages(groupID)); err != nil {
		return err
	}
	// Enriched keys also match the broader user:*:group:{id}* scan, but the
	// two patterns mirror the key scheme explicitly.
	if err := l.store.DeleteByPattern(ctx, patternUserGroup(groupID)); err != nil {
		return err
	}
	return l.store.DeleteByPattern(ctx, patternUserGroupEnriched(groupID))
}

// --- Helpers ----------------------------------------------------------------

func messageID(m model.CachedMessage) int64 { return m.ID }

func enrichedID(e model.EnrichedSummary) int64 { return e.ID }

func appendJSON[T any](ctx context.Context, s Store, key string, item T, limit int, ttl time.Duration) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding item for %s: %w", key, err)
	}
	return s.AppendBounded(ctx, key, raw, limit, ttl)
}

// readWindow reads a superset window and filters it: malformed entries are
// dropped, duplicate ids keep only the most recent occurrence, and the
// result is returned in chronological (append) order.
func readWindow[T any](ctx context.Context, s Store, key string, limit int, idOf func(T) int64) ([]T, error) {
	raw, err := s.ReadWindow(ctx, key, limit)
	if err != nil {
		return nil, err
	}

	parsed := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		parsed = append(parsed, v)
	}

	seen := make(map[int64]struct{}, len(parsed))
	deduped := make([]T, 0, len(parsed))
	for i := len(parsed) - 1; i >= 0; i-- {
		id := idOf(parsed[i])
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, parsed[i])
	}

	// Reverse back to chronological order.
	for i, j := 0, len(deduped)-1; i < j; i, j = i+1, j-1 {
		deduped[i], deduped[j] = deduped[j], deduped[i]
	}
	return deduped, nil
}

func setJSON[T any](ctx context.Context, s Store, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.SetScalar(ctx, key, string(raw), ttl)
}

func getJSON[T any](ctx context.Context, s Store, key string) (*T, error) {
	raw, ok, err := s.GetScalar(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, nil
	}
	return &v, nil
}

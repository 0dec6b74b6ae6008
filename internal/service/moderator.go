package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"groupwarden.app/warden/common/logger"
	"groupwarden.app/warden/core/config"
	"groupwarden.app/warden/internal/model"
	"groupwarden.app/warden/internal/store"
)

// Penalty points by primary verdict category, scaled by confidence.
var penaltyByCategory = map[string]int{
	"promo":      5,
	"off-topic":  5,
	"link-flood": 10,
	"harmful":    30,
	"scam":       30,
	"nsfw":       30,
}

const (
	unknownCategoryPenalty = 5
	minPenalty             = 3
)

// Moderator is the reputation-driven treatment engine. It keeps the
// per-(user, group) score in the cache (mirrored best-effort to the durable
// user record), maps score buckets to escalating actions and writes one
// audit row per evaluated message.
type Moderator struct {
	cache      RecencyCache
	users      store.UserStore
	treatments store.TreatmentStore
	notifier   Notifier
	deleter    MessageDeleter
	cfg        config.ModerationConfig
}

func NewModerator(cache RecencyCache, users store.UserStore, treatments store.TreatmentStore, notifier Notifier, deleter MessageDeleter, cfg config.ModerationConfig) *Moderator {
	return &Moderator{
		cache:      cache,
		users:      users,
		treatments: treatments,
		notifier:   notifier,
		deleter:    deleter,
		cfg:        cfg,
	}
}

// GetReputation reads the cached score; on a miss it falls back to the
// durable user record (defaulting to the starting score) and writes the
// result back to the cache without a TTL.
func (m *Moderator) GetReputation(ctx context.Context, userID, groupID int64) (int, error) {
	score, ok, err := m.cache.Reputation(ctx, userID, groupID)
	if err != nil {
		slog.WarnContext(ctx, "reputation cache read failed", "error", err)
	}
	if ok {
		return score, nil
	}

	score = m.cfg.StartScore
	user, err := m.users.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		score = int(user.ReputationScore)
	case errors.Is(err, store.ErrNotFound):
		// First sighting: keep the starting score.
	default:
		slog.WarnContext(ctx, "reputation durable read failed", "error", err)
	}

	if err := m.cache.SetReputation(ctx, userID, groupID, score); err != nil {
		slog.WarnContext(ctx, "reputation cache write-back failed", "error", err)
	}
	return score, nil
}

// SetReputation overwrites the cached score, then mirrors it to the durable
// user record. The mirror is best-effort: a durable-store failure is logged
// and never rolls back the cache mutation.
func (m *Moderator) SetReputation(ctx context.Context, userID, groupID int64, score int) error {
	if err := m.cache.SetReputation(ctx, userID, groupID, score); err != nil {
		return fmt.Errorf("writing reputation to cache: %w", err)
	}

	if err := m.users.UpdateReputation(ctx, userID, float64(score)); err != nil {
		slog.ErrorContext(ctx, "mirroring reputation to durable store failed", "error", err)
	}
	return nil
}

// ComputePenalty maps a verdict to docked points: category base scaled by
// max(confidence, 0.5), rounded up, with a floor of 3.
func ComputePenalty(verdict model.Verdict) int {
	base, ok := penaltyByCategory[verdict.Category()]
	if !ok {
		base = unknownCategoryPenalty
	}

	scaled := int(math.Ceil(float64(base) * math.Max(verdict.Confidence, 0.5)))
	if scaled < minPenalty {
		return minPenalty
	}
	return scaled
}

// EvaluateVerdict applies a verdict to an assembled context: non-spam
// verdicts persist a neutral audit row and leave reputation untouched;
// spam verdicts dock points, walk the threshold ladder, execute the
// selected side effects and persist the treatment outcome. Exactly one
// TreatmentRecord is written per call.
func (m *Moderator) EvaluateVerdict(ctx context.Context, verdict model.Verdict, bundle *ContextBundle) (model.Action, error) {
	userID := resolveUserID(bundle)
	groupID := bundle.GroupID
	if userID == 0 || groupID == 0 {
		return model.ActionNone, fmt.Errorf("context bundle missing user or group id")
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		GroupID:   logger.Ptr(groupID),
		Component: "warden.service.moderator",
	})

	score, err := m.GetReputation(ctx, userID, groupID)
	if err != nil {
		return model.ActionNone, err
	}

	if !verdict.Spam {
		slog.InfoContext(ctx, "verdict clean, no action")
		record := m.newRecord(bundle, verdict, model.ActionNone, nil, false, 0, nil)
		if err := m.treatments.Create(ctx, record); err != nil {
			return model.ActionNone, fmt.Errorf("persisting neutral audit record: %w", err)
		}
		return model.ActionNone, nil
	}

	penalty := ComputePenalty(verdict)
	newScore := score - penalty
	if newScore < 0 {
		newScore = 0
	}
	if err := m.SetReputation(ctx, userID, groupID, newScore); err != nil {
		return model.ActionNone, err
	}

	action, notice := m.selectAction(userID, newScore)
	if action != model.ActionNone {
		if err := m.notifier.Notify(ctx, groupID, notice); err != nil {
			slog.ErrorContext(ctx, "sending treatment notice failed", "action", action, "error", err)
		}
	}

	deleted := m.deleteIfNeeded(ctx, bundle, verdict)

	var noticePtr *string
	if notice != "" {
		noticePtr = &notice
	}
	record := m.newRecord(bundle, verdict, action, noticePtr, deleted, penalty, &newScore)
	if err := m.treatments.Create(ctx, record); err != nil {
		slog.ErrorContext(ctx, "persisting treatment record failed", "error", err)
	}

	slog.InfoContext(ctx, "treatment applied",
		"action", action,
		"points_docked", penalty,
		"reputation", newScore,
		"deleted", deleted)
	return action, nil
}

// selectAction walks the threshold ladder from the bottom up and returns
// the single action for the new score plus its user-facing notice.
func (m *Moderator) selectAction(userID int64, score int) (model.Action, string) {
	switch {
	case score <= m.cfg.BanThreshold:
		return model.ActionBan,
			fmt.Sprintf("❌ User %d banned (reputation %d/%d).", userID, score, m.cfg.MaxScore)
	case score <= m.cfg.ProbationThreshold:
		return model.ActionProbation,
			fmt.Sprintf("🚨 You're on probation (score %d/%d). Continued spam will result in removal.", score, m.cfg.MaxScore)
	case score <= m.cfg.StrongWarnThreshold:
		return model.ActionWarningStrong,
			fmt.Sprintf("⚠️ Your messages are frequently flagged as spam. Current reputation: %d/%d. Further violations may lead to removal.", score, m.cfg.MaxScore)
	case score <= m.cfg.WarningThreshold:
		return model.ActionWarningMild,
			fmt.Sprintf("⚠️ Heads up! Some of your recent messages may be spam. Your reputation score is %d/%d.", score, m.cfg.MaxScore)
	default:
		return model.ActionNone, ""
	}
}

// deleteIfNeeded removes the offending message when the group's
// spam-detection toggle is on and the verdict clears the group's confidence
// threshold. Requires the platform-native message id; its absence is a
// no-op, not an error.
func (m *Moderator) deleteIfNeeded(ctx context.Context, bundle *ContextBundle, verdict model.Verdict) bool {
	if !bundle.GroupConfig.SpamDetectionEnabled() {
		return false
	}

	threshold := m.cfg.DefaultConfidence
	if bundle.GroupConfig != nil && bundle.GroupConfig.SpamConfidenceThreshold > 0 {
		threshold = bundle.GroupConfig.SpamConfidenceThreshold
	}
	if verdict.Confidence < threshold {
		return false
	}

	platformID := bundle.NewMessage.PlatformMessageID
	if platformID == nil {
		slog.WarnContext(ctx, "no platform message id in context, skipping deletion")
		return false
	}

	if err := m.deleter.DeleteMessage(ctx, bundle.GroupID, *platformID); err != nil {
		slog.ErrorContext(ctx, "deleting spam message failed", "platform_message_id", *platformID, "error", err)
		return false
	}
	slog.InfoContext(ctx, "deleted spam message", "platform_message_id", *platformID)
	return true
}

func (m *Moderator) newRecord(bundle *ContextBundle, verdict model.Verdict, action model.Action, notice *string, deleted bool, penalty int, finalScore *int) *model.TreatmentRecord {
	var messageID *int64
	if bundle.NewMessage.ID != 0 {
		id := bundle.NewMessage.ID
		messageID = &id
	}
	return &model.TreatmentRecord{
		MessageID:       messageID,
		Spam:            verdict.Spam,
		Confidence:      verdict.Confidence,
		Category:        verdict.Category(),
		Reason:          verdict.Reason,
		Action:          action,
		ActionMessage:   notice,
		Deleted:         deleted,
		PointsDocked:    penalty,
		FinalReputation: finalScore,
	}
}

// resolveUserID prefers the triggering message's author, falling back to the
// newest cached user activity when the message lacks one.
func resolveUserID(bundle *ContextBundle) int64 {
	if bundle.NewMessage.UserID != 0 {
		return bundle.NewMessage.UserID
	}
	if n := len(bundle.RecentUserMessages); n > 0 {
		return bundle.RecentUserMessages[n-1].UserID
	}
	if n := len(bundle.UserGlobalActivity); n > 0 {
		return bundle.UserGlobalActivity[n-1].UserID
	}
	return 0
}

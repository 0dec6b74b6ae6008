package service_test

import (
	"context"
	"time"

	"groupwarden.app/warden/internal/model"
	"groupwarden.app/warden/internal/store"
)

type mockCache struct {
	recentGroupMessagesFn     func(ctx context.Context, groupID int64) ([]model.CachedMessage, error)
	recentUserGroupMessagesFn func(ctx context.Context, userID, groupID int64) ([]model.CachedMessage, error)
	recentUserGroupEnrichedFn func(ctx context.Context, userID, groupID int64) ([]model.EnrichedSummary, error)
	recentUserGlobalFn        func(ctx context.Context, userID int64) ([]model.CachedMessage, error)
	groupStateFn              func(ctx context.Context, groupID int64) (*model.GroupState, error)
	groupConfigFn             func(ctx context.Context, groupID int64) (*model.GroupConfigSnapshot, error)
	cooldownActiveFn          func(ctx context.Context, groupID int64) (bool, error)
	setCooldownFn             func(ctx context.Context, groupID int64, ttl time.Duration) error
	reputationFn              func(ctx context.Context, userID, groupID int64) (int, bool, error)
	setReputationFn           func(ctx context.Context, userID, groupID int64, score int) error

	setCooldownCalls   int
	setReputationCalls int
}

func (m *mockCache) RecentGroupMessages(ctx context.Context, groupID int64) ([]model.CachedMessage, error) {
	if m.recentGroupMessagesFn != nil {
		return m.recentGroupMessagesFn(ctx, groupID)
	}
	return nil, nil
}

func (m *mockCache) RecentUserGroupMessages(ctx context.Context, userID, groupID int64) ([]model.CachedMessage, error) {
	if m.recentUserGroupMessagesFn != nil {
		return m.recentUserGroupMessagesFn(ctx, userID, groupID)
	}
	return nil, nil
}

func (m *mockCache) RecentUserGroupEnriched(ctx context.Context, userID, groupID int64) ([]model.EnrichedSummary, error) {
	if m.recentUserGroupEnrichedFn != nil {
		return m.recentUserGroupEnrichedFn(ctx, userID, groupID)
	}
	return nil, nil
}

func (m *mockCache) RecentUserGlobal(ctx context.Context, userID int64) ([]model.CachedMessage, error) {
	if m.recentUserGlobalFn != nil {
		return m.recentUserGlobalFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockCache) GroupState(ctx context.Context, groupID int64) (*model.GroupState, error) {
	if m.groupStateFn != nil {
		return m.groupStateFn(ctx, groupID)
	}
	return nil, nil
}

func (m *mockCache) GroupConfig(ctx context.Context, groupID int64) (*model.GroupConfigSnapshot, error) {
	if m.groupConfigFn != nil {
		return m.groupConfigFn(ctx, groupID)
	}
	return nil, nil
}

func (m *mockCache) CooldownActive(ctx context.Context, groupID int64) (bool, error) {
	if m.cooldownActiveFn != nil {
		return m.cooldownActiveFn(ctx, groupID)
	}
	return false, nil
}

func (m *mockCache) SetCooldown(ctx context.Context, groupID int64, ttl time.Duration) error {
	m.setCooldownCalls++
	if m.setCooldownFn != nil {
		return m.setCooldownFn(ctx, groupID, ttl)
	}
	return nil
}

func (m *mockCache) Reputation(ctx context.Context, userID, groupID int64) (int, bool, error) {
	if m.reputationFn != nil {
		return m.reputationFn(ctx, userID, groupID)
	}
	return 0, false, nil
}

func (m *mockCache) SetReputation(ctx context.Context, userID, groupID int64, score int) error {
	m.setReputationCalls++
	if m.setReputationFn != nil {
		return m.setReputationFn(ctx, userID, groupID, score)
	}
	return nil
}

type mockRehydrator struct {
	rehydrateGroupFn func(ctx context.Context, chatID int64, limit int, clear bool) error
	rehydrateCalls   int
}

func (m *mockRehydrator) RehydrateGroup(ctx context.Context, chatID int64, limit int, clear bool) error {
	m.rehydrateCalls++
	if m.rehydrateGroupFn != nil {
		return m.rehydrateGroupFn(ctx, chatID, limit, clear)
	}
	return nil
}

type mockGroupStore struct {
	getByChatIDFn func(ctx context.Context, chatID int64) (*model.Group, error)
	listChatIDsFn func(ctx context.Context) ([]int64, error)
}

func (m *mockGroupStore) GetByChatID(ctx context.Context, chatID int64) (*model.Group, error) {
	if m.getByChatIDFn != nil {
		return m.getByChatIDFn(ctx, chatID)
	}
	return nil, store.ErrNotFound
}

func (m *mockGroupStore) ListChatIDs(ctx context.Context) ([]int64, error) {
	if m.listChatIDsFn != nil {
		return m.listChatIDsFn(ctx)
	}
	return nil, nil
}

type mockGroupConfigStore struct {
	getByGroupIDFn func(ctx context.Context, groupID int64) (*model.GroupConfig, error)
}

func (m *mockGroupConfigStore) GetByGroupID(ctx context.Context, groupID int64) (*model.GroupConfig, error) {
	if m.getByGroupIDFn != nil {
		return m.getByGroupIDFn(ctx, groupID)
	}
	return nil, store.ErrNotFound
}

type mockUserStore struct {
	getByUserIDFn      func(ctx context.Context, userID int64) (*model.User, error)
	updateReputationFn func(ctx context.Context, userID int64, score float64) error

	updateCalls int
}

func (m *mockUserStore) GetByUserID(ctx context.Context, userID int64) (*model.User, error) {
	if m.getByUserIDFn != nil {
		return m.getByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserStore) UpdateReputation(ctx context.Context, userID int64, score float64) error {
	m.updateCalls++
	if m.updateReputationFn != nil {
		return m.updateReputationFn(ctx, userID, score)
	}
	return nil
}

type mockTreatmentStore struct {
	createFn    func(ctx context.Context, record *model.TreatmentRecord) error
	createCalls int
	created     []*model.TreatmentRecord
}

func (m *mockTreatmentStore) Create(ctx context.Context, record *model.TreatmentRecord) error {
	m.createCalls++
	m.created = append(m.created, record)
	if m.createFn != nil {
		return m.createFn(ctx, record)
	}
	return nil
}

func (m *mockTreatmentStore) ListByMessage(ctx context.Context, messageID int64) ([]model.TreatmentRecord, error) {
	return nil, nil
}

type mockNotifier struct {
	notifyFn func(ctx context.Context, chatID int64, text string) error
	calls    int
	lastText string
}

func (m *mockNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	m.calls++
	m.lastText = text
	if m.notifyFn != nil {
		return m.notifyFn(ctx, chatID, text)
	}
	return nil
}

type mockDeleter struct {
	deleteFn func(ctx context.Context, chatID, platformMessageID int64) error
	calls    int
}

func (m *mockDeleter) DeleteMessage(ctx context.Context, chatID, platformMessageID int64) error {
	m.calls++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, chatID, platformMessageID)
	}
	return nil
}

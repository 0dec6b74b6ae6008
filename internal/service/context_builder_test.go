package service_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"groupwarden.app/warden/core/config"
	"groupwarden.app/warden/internal/model"
	"groupwarden.app/warden/internal/service"
)

func defaultContextConfig() config.ContextConfig {
	return config.ContextConfig{
		StaleWindow:     5 * time.Minute,
		MinContextMsgs:  5,
		EmptyDBCooldown: 5 * time.Minute,
		RehydrateLimit:  50,
		ReadTimeout:     2 * time.Second,
		FrequencyTau:    60,
	}
}

// freshWindow builds n messages with recent timestamps spaced a minute apart,
// newest last.
func freshWindow(n int) []model.CachedMessage {
	msgs := make([]model.CachedMessage, n)
	now := time.Now().UTC()
	for i := range msgs {
		msgs[i] = model.CachedMessage{
			ID:        int64(i + 1),
			UserID:    42,
			GroupID:   555,
			Text:      fmt.Sprintf("message %d", i+1),
			CreatedAt: now.Add(time.Duration(i-n) * time.Minute).Format(time.RFC3339),
		}
	}
	return msgs
}

var _ = Describe("ContextBuilder", func() {
	var (
		ctx        context.Context
		cache      *mockCache
		rehydrator *mockRehydrator
		groups     *mockGroupStore
		configs    *mockGroupConfigStore
		builder    *service.ContextBuilder
		newMessage model.CachedMessage
	)

	BeforeEach(func() {
		ctx = context.Background()
		cache = &mockCache{}
		rehydrator = &mockRehydrator{}
		groups = &mockGroupStore{}
		configs = &mockGroupConfigStore{}
		builder = service.NewContextBuilder(cache, rehydrator, groups, configs, defaultContextConfig())
		newMessage = model.CachedMessage{
			ID:        9999,
			UserID:    42,
			GroupID:   555,
			Text:      "hello",
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
	})

	Context("with a healthy group window", func() {
		BeforeEach(func() {
			cache.recentGroupMessagesFn = func(_ context.Context, _ int64) ([]model.CachedMessage, error) {
				return freshWindow(6), nil
			}
			cache.groupConfigFn = func(_ context.Context, _ int64) (*model.GroupConfigSnapshot, error) {
				return &model.GroupConfigSnapshot{GroupDescription: "a go meetup"}, nil
			}
			cache.groupStateFn = func(_ context.Context, _ int64) (*model.GroupState, error) {
				return &model.GroupState{ChatID: 555, Name: "gophers"}, nil
			}
		})

		It("assembles the bundle without rehydrating", func() {
			bundle, err := builder.BuildContext(ctx, 42, 555, newMessage)
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.RecentGroupMessages).To(HaveLen(6))
			Expect(bundle.GroupDescription).To(Equal("a go meetup"))
			Expect(bundle.GroupState.Name).To(Equal("gophers"))
			Expect(bundle.NewMessage.ID).To(Equal(int64(9999)))
			Expect(rehydrator.rehydrateCalls).To(BeZero())
		})

		It("computes frequency scores from the user windows", func() {
			// Five messages 10 seconds apart is bursty enough to score high.
			burst := make([]model.CachedMessage, 5)
			base := time.Now().UTC()
			for i := range burst {
				burst[i] = model.CachedMessage{
					ID:        int64(100 + i),
					UserID:    42,
					CreatedAt: base.Add(time.Duration(i*10) * time.Second).Format(time.RFC3339),
				}
			}
			cache.recentUserGroupMessagesFn = func(_ context.Context, _, _ int64) ([]model.CachedMessage, error) {
				return burst, nil
			}

			bundle, err := builder.BuildContext(ctx, 42, 555, newMessage)
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.Frequency.WithinGroup).To(BeNumerically(">", 0.8))
			Expect(bundle.Frequency.AcrossGroups).To(BeZero())
		})
	})

	Context("when the group window is thin", func() {
		BeforeEach(func() {
			calls := 0
			cache.recentGroupMessagesFn = func(_ context.Context, _ int64) ([]model.CachedMessage, error) {
				calls++
				if calls == 1 {
					return freshWindow(2), nil
				}
				return freshWindow(20), nil
			}
		})

		It("rehydrates and uses the refreshed window", func() {
			bundle, err := builder.BuildContext(ctx, 42, 555, newMessage)
			Expect(err).NotTo(HaveOccurred())
			Expect(rehydrator.rehydrateCalls).To(Equal(1))
			Expect(bundle.RecentGroupMessages).To(HaveLen(20))
		})
	})

	Context("when the group window is stale", func() {
		BeforeEach(func() {
			calls := 0
			old := time.Now().UTC().Add(-time.Hour)
			stale := make([]model.CachedMessage, 6)
			for i := range stale {
				stale[i] = model.CachedMessage{
					ID:        int64(i + 1),
					CreatedAt: old.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
				}
			}
			cache.recentGroupMessagesFn = func(_ context.Context, _ int64) ([]model.CachedMessage, error) {
				calls++
				if calls == 1 {
					return stale, nil
				}
				return freshWindow(10), nil
			}
		})

		It("rehydrates despite having enough messages", func() {
			bundle, err := builder.BuildContext(ctx, 42, 555, newMessage)
			Expect(err).NotTo(HaveOccurred())
			Expect(rehydrator.rehydrateCalls).To(Equal(1))
			Expect(bundle.RecentGroupMessages).To(HaveLen(10))
		})
	})

	Context("when the cooldown flag is set", func() {
		BeforeEach(func() {
			cache.cooldownActiveFn = func(_ context.Context, _ int64) (bool, error) {
				return true, nil
			}
			cache.recentGroupMessagesFn = func(_ context.Context, _ int64) ([]model.CachedMessage, error) {
				return nil, nil
			}
		})

		It("skips rehydration entirely", func() {
			bundle, err := builder.BuildContext(ctx, 42, 555, newMessage)
			Expect(err).NotTo(HaveOccurred())
			Expect(rehydrator.rehydrateCalls).To(BeZero())
			Expect(bundle.RecentGroupMessages).To(BeEmpty())
		})
	})

	Context("when the durable store is empty for the group", func() {
		BeforeEach(func() {
			cache.recentGroupMessagesFn = func(_ context.Context, _ int64) ([]model.CachedMessage, error) {
				return nil, nil
			}
		})

		It("sets the cooldown and returns an empty bundle", func() {
			bundle, err := builder.BuildContext(ctx, 42, 555, newMessage)
			Expect(err).NotTo(HaveOccurred())
			Expect(rehydrator.rehydrateCalls).To(Equal(1))
			Expect(cache.setCooldownCalls).To(Equal(1))
			Expect(bundle.RecentGroupMessages).To(BeEmpty())
			Expect(bundle.GroupConfig).To(BeNil())
			Expect(bundle.GroupID).To(Equal(int64(555)))
		})
	})

	Context("when config and state miss the cache", func() {
		BeforeEach(func() {
			cache.recentGroupMessagesFn = func(_ context.Context, _ int64) ([]model.CachedMessage, error) {
				return freshWindow(6), nil
			}
			groups.getByChatIDFn = func(_ context.Context, chatID int64) (*model.Group, error) {
				return &model.Group{ID: 7, ChatID: chatID, Name: "gophers", HasConfig: true}, nil
			}
			configs.getByGroupIDFn = func(_ context.Context, groupID int64) (*model.GroupConfig, error) {
				Expect(groupID).To(Equal(int64(7)))
				return &model.GroupConfig{GroupID: 7, GroupDescription: "from postgres"}, nil
			}
		})

		It("falls back to the durable store", func() {
			bundle, err := builder.BuildContext(ctx, 42, 555, newMessage)
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.GroupConfig).NotTo(BeNil())
			Expect(bundle.GroupDescription).To(Equal("from postgres"))
			Expect(bundle.GroupState).NotTo(BeNil())
			Expect(bundle.GroupState.Name).To(Equal("gophers"))
		})
	})
})

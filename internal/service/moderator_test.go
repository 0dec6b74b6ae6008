package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"groupwarden.app/warden/core/config"
	"groupwarden.app/warden/internal/model"
	"groupwarden.app/warden/internal/service"
	"groupwarden.app/warden/internal/store"
)

func defaultModerationConfig() config.ModerationConfig {
	return config.ModerationConfig{
		StartScore:          100,
		MaxScore:            100,
		WarningThreshold:    80,
		StrongWarnThreshold: 60,
		ProbationThreshold:  40,
		BanThreshold:        20,
		DefaultConfidence:   0.7,
	}
}

var _ = Describe("ComputePenalty", func() {
	DescribeTable("scales the category base by confidence",
		func(categories []string, confidence float64, expected int) {
			verdict := model.Verdict{Spam: true, Confidence: confidence, Categories: categories}
			Expect(service.ComputePenalty(verdict)).To(Equal(expected))
		},
		Entry("promo at high confidence", []string{"promo"}, 0.9, 5),
		Entry("scam at full confidence", []string{"scam"}, 1.0, 30),
		Entry("harmful clamps low confidence to 0.5", []string{"harmful"}, 0.2, 15),
		Entry("link-flood at 0.8", []string{"link-flood"}, 0.8, 8),
		Entry("unknown category uses the default base", []string{"weird"}, 1.0, 5),
		Entry("no categories uses the default base", nil, 1.0, 5),
		Entry("floor of 3 points", []string{"promo"}, 0.5, 3),
	)
})

var _ = Describe("Moderator", func() {
	var (
		ctx        context.Context
		cache      *mockCache
		users      *mockUserStore
		treatments *mockTreatmentStore
		notifier   *mockNotifier
		deleter    *mockDeleter
		moderator  *service.Moderator
	)

	BeforeEach(func() {
		ctx = context.Background()
		cache = &mockCache{}
		users = &mockUserStore{}
		treatments = &mockTreatmentStore{}
		notifier = &mockNotifier{}
		deleter = &mockDeleter{}
		moderator = service.NewModerator(cache, users, treatments, notifier, deleter, defaultModerationConfig())
	})

	bundle := func() *service.ContextBundle {
		return &service.ContextBundle{
			GroupID: 555,
			NewMessage: model.CachedMessage{
				ID:     1001,
				UserID: 42,
				Text:   "buy cheap followers now",
			},
		}
	}

	Describe("GetReputation", func() {
		It("returns the cached score on a hit", func() {
			cache.reputationFn = func(_ context.Context, _, _ int64) (int, bool, error) {
				return 73, true, nil
			}

			score, err := moderator.GetReputation(ctx, 42, 555)
			Expect(err).NotTo(HaveOccurred())
			Expect(score).To(Equal(73))
			Expect(cache.setReputationCalls).To(BeZero())
		})

		It("falls back to the durable record and writes back on a miss", func() {
			users.getByUserIDFn = func(_ context.Context, _ int64) (*model.User, error) {
				return &model.User{UserID: 42, ReputationScore: 64}, nil
			}
			var written int
			cache.setReputationFn = func(_ context.Context, _, _ int64, score int) error {
				written = score
				return nil
			}

			score, err := moderator.GetReputation(ctx, 42, 555)
			Expect(err).NotTo(HaveOccurred())
			Expect(score).To(Equal(64))
			Expect(written).To(Equal(64))
		})

		It("defaults to the starting score for an unknown user", func() {
			users.getByUserIDFn = func(_ context.Context, _ int64) (*model.User, error) {
				return nil, store.ErrNotFound
			}

			score, err := moderator.GetReputation(ctx, 42, 555)
			Expect(err).NotTo(HaveOccurred())
			Expect(score).To(Equal(100))
		})
	})

	Describe("SetReputation", func() {
		It("mirrors the cache write to the durable store", func() {
			var mirrored float64
			users.updateReputationFn = func(_ context.Context, _ int64, score float64) error {
				mirrored = score
				return nil
			}

			Expect(moderator.SetReputation(ctx, 42, 555, 61)).To(Succeed())
			Expect(cache.setReputationCalls).To(Equal(1))
			Expect(mirrored).To(Equal(61.0))
		})

		It("does not fail when the durable mirror fails", func() {
			users.updateReputationFn = func(_ context.Context, _ int64, _ float64) error {
				return errors.New("db down")
			}

			Expect(moderator.SetReputation(ctx, 42, 555, 61)).To(Succeed())
			Expect(cache.setReputationCalls).To(Equal(1))
		})

		It("fails when the cache write fails", func() {
			cache.setReputationFn = func(_ context.Context, _, _ int64, _ int) error {
				return errors.New("redis down")
			}

			Expect(moderator.SetReputation(ctx, 42, 555, 61)).NotTo(Succeed())
			Expect(users.updateCalls).To(BeZero())
		})
	})

	Describe("EvaluateVerdict", func() {
		Context("with a non-spam verdict", func() {
			It("leaves reputation untouched and records a neutral audit row", func() {
				cache.reputationFn = func(_ context.Context, _, _ int64) (int, bool, error) {
					return 100, true, nil
				}

				action, err := moderator.EvaluateVerdict(ctx, model.Verdict{Spam: false, Confidence: 0.97}, bundle())
				Expect(err).NotTo(HaveOccurred())
				Expect(action).To(Equal(model.ActionNone))
				Expect(cache.setReputationCalls).To(BeZero())
				Expect(notifier.calls).To(BeZero())
				Expect(deleter.calls).To(BeZero())

				Expect(treatments.createCalls).To(Equal(1))
				record := treatments.created[0]
				Expect(record.Spam).To(BeFalse())
				Expect(record.Action).To(Equal(model.ActionNone))
				Expect(record.PointsDocked).To(BeZero())
				Expect(record.FinalReputation).To(BeNil())
			})
		})

		Context("with a spam verdict", func() {
			evaluate := func(startScore int, verdict model.Verdict) model.Action {
				cache.reputationFn = func(_ context.Context, _, _ int64) (int, bool, error) {
					return startScore, true, nil
				}
				action, err := moderator.EvaluateVerdict(ctx, verdict, bundle())
				Expect(err).NotTo(HaveOccurred())
				return action
			}

			It("docks points and takes no action above the warning threshold", func() {
				// 100 - ceil(5*0.9) = 95
				action := evaluate(100, model.Verdict{Spam: true, Confidence: 0.9, Categories: []string{"promo"}})
				Expect(action).To(Equal(model.ActionNone))
				Expect(notifier.calls).To(BeZero())

				Expect(treatments.created).To(HaveLen(1))
				Expect(treatments.created[0].PointsDocked).To(Equal(5))
				Expect(*treatments.created[0].FinalReputation).To(Equal(95))
			})

			It("issues a mild warning at or below 80", func() {
				// 100 - ceil(30*0.84) = 100 - 26 = 74
				action := evaluate(100, model.Verdict{Spam: true, Confidence: 0.84, Categories: []string{"scam"}})
				Expect(action).To(Equal(model.ActionWarningMild))
				Expect(notifier.calls).To(Equal(1))
				Expect(notifier.lastText).To(ContainSubstring("Heads up"))
			})

			It("issues a strong warning at or below 60", func() {
				action := evaluate(75, model.Verdict{Spam: true, Confidence: 1.0, Categories: []string{"harmful"}})
				Expect(action).To(Equal(model.ActionWarningStrong))
				Expect(notifier.lastText).To(ContainSubstring("frequently flagged"))
			})

			It("puts the user on probation at or below 40", func() {
				action := evaluate(55, model.Verdict{Spam: true, Confidence: 1.0, Categories: []string{"nsfw"}})
				Expect(action).To(Equal(model.ActionProbation))
				Expect(notifier.lastText).To(ContainSubstring("probation"))
			})

			It("bans at or below 20", func() {
				action := evaluate(45, model.Verdict{Spam: true, Confidence: 1.0, Categories: []string{"scam"}})
				Expect(action).To(Equal(model.ActionBan))
				Expect(notifier.lastText).To(ContainSubstring("banned"))
			})

			It("clamps the score at zero", func() {
				evaluate(10, model.Verdict{Spam: true, Confidence: 1.0, Categories: []string{"scam"}})
				Expect(*treatments.created[0].FinalReputation).To(Equal(0))
			})

			It("writes exactly one treatment record", func() {
				evaluate(45, model.Verdict{Spam: true, Confidence: 1.0, Categories: []string{"scam"}})
				Expect(treatments.createCalls).To(Equal(1))
			})

			It("still applies treatment when the notifier fails", func() {
				notifier.notifyFn = func(_ context.Context, _ int64, _ string) error {
					return errors.New("platform unreachable")
				}
				action := evaluate(45, model.Verdict{Spam: true, Confidence: 1.0, Categories: []string{"scam"}})
				Expect(action).To(Equal(model.ActionBan))
				Expect(treatments.createCalls).To(Equal(1))
			})
		})

		Context("deletion guard", func() {
			var platformID int64

			spamBundle := func(cfg *model.GroupConfigSnapshot, withPlatformID bool) *service.ContextBundle {
				b := bundle()
				b.GroupConfig = cfg
				if withPlatformID {
					platformID = 777
					b.NewMessage.PlatformMessageID = &platformID
				}
				return b
			}

			highConfidence := model.Verdict{Spam: true, Confidence: 0.95, Categories: []string{"scam"}}

			BeforeEach(func() {
				cache.reputationFn = func(_ context.Context, _, _ int64) (int, bool, error) {
					return 100, true, nil
				}
			})

			It("deletes when the toggle is on and confidence clears the threshold", func() {
				cfg := &model.GroupConfigSnapshot{
					SpamConfidenceThreshold: 0.8,
					ModerationFeatures:      map[string]bool{"spam_detection": true},
				}
				_, err := moderator.EvaluateVerdict(ctx, highConfidence, spamBundle(cfg, true))
				Expect(err).NotTo(HaveOccurred())
				Expect(deleter.calls).To(Equal(1))
				Expect(treatments.created[0].Deleted).To(BeTrue())
			})

			It("does not delete when the toggle is off", func() {
				cfg := &model.GroupConfigSnapshot{
					ModerationFeatures: map[string]bool{"spam_detection": false},
				}
				_, err := moderator.EvaluateVerdict(ctx, highConfidence, spamBundle(cfg, true))
				Expect(err).NotTo(HaveOccurred())
				Expect(deleter.calls).To(BeZero())
			})

			It("does not delete below the confidence threshold", func() {
				cfg := &model.GroupConfigSnapshot{
					SpamConfidenceThreshold: 0.99,
					ModerationFeatures:      map[string]bool{"spam_detection": true},
				}
				_, err := moderator.EvaluateVerdict(ctx, highConfidence, spamBundle(cfg, true))
				Expect(err).NotTo(HaveOccurred())
				Expect(deleter.calls).To(BeZero())
			})

			It("skips deletion without a platform message id", func() {
				cfg := &model.GroupConfigSnapshot{
					SpamConfidenceThreshold: 0.8,
					ModerationFeatures:      map[string]bool{"spam_detection": true},
				}
				_, err := moderator.EvaluateVerdict(ctx, highConfidence, spamBundle(cfg, false))
				Expect(err).NotTo(HaveOccurred())
				Expect(deleter.calls).To(BeZero())
				Expect(treatments.created[0].Deleted).To(BeFalse())
			})

			It("uses the default threshold when the group has no config", func() {
				_, err := moderator.EvaluateVerdict(ctx, highConfidence, spamBundle(nil, true))
				Expect(err).NotTo(HaveOccurred())
				Expect(deleter.calls).To(Equal(1))
			})
		})

		Context("user id resolution", func() {
			It("falls back to the newest cached user message", func() {
				cache.reputationFn = func(_ context.Context, _, _ int64) (int, bool, error) {
					return 100, true, nil
				}
				b := &service.ContextBundle{
					GroupID:    555,
					NewMessage: model.CachedMessage{ID: 1001, Text: "spam"},
					RecentUserMessages: []model.CachedMessage{
						{ID: 900, UserID: 42},
						{ID: 901, UserID: 42},
					},
				}

				_, err := moderator.EvaluateVerdict(ctx, model.Verdict{Spam: false}, b)
				Expect(err).NotTo(HaveOccurred())
				Expect(treatments.createCalls).To(Equal(1))
			})

			It("errors when no user id can be resolved", func() {
				b := &service.ContextBundle{
					GroupID:    555,
					NewMessage: model.CachedMessage{ID: 1001, Text: "spam"},
				}

				_, err := moderator.EvaluateVerdict(ctx, model.Verdict{Spam: true, Confidence: 1}, b)
				Expect(err).To(HaveOccurred())
				Expect(treatments.createCalls).To(BeZero())
			})
		})
	})
})

package service

import (
	"groupwarden.app/warden/core/config"
	"groupwarden.app/warden/internal/store"
)

// Services wires the moderation core from its collaborators. Accessors
// return freshly-constructed services over the shared dependencies.
type Services struct {
	stores     *store.Stores
	cache      RecencyCache
	rehydrator Rehydrator
	notifier   Notifier
	deleter    MessageDeleter
	cfg        config.Config
}

func NewServices(stores *store.Stores, cache RecencyCache, rehydrator Rehydrator, notifier Notifier, deleter MessageDeleter, cfg config.Config) *Services {
	return &Services{
		stores:     stores,
		cache:      cache,
		rehydrator: rehydrator,
		notifier:   notifier,
		deleter:    deleter,
		cfg:        cfg,
	}
}

func (s *Services) ContextBuilder() *ContextBuilder {
	return NewContextBuilder(s.cache, s.rehydrator, s.stores.Groups(), s.stores.GroupConfigs(), s.cfg.Context)
}

func (s *Services) Moderator() *Moderator {
	return NewModerator(s.cache, s.stores.Users(), s.stores.Treatments(), s.notifier, s.deleter, s.cfg.Moderation)
}

package service

import (
	"parley.app/server/core/config"
	"parley.app/server/internal/catalog"
	"parley.app/server/internal/store"
)

// Services bundles the application services for handler wiring.
type Services struct {
	Chat   ChatService
	Models ModelService
}

func NewServices(cfg *config.Config, stores *store.Stores, normalizer Normalizer, dispatcher Dispatcher, registry *catalog.Registry) *Services {
	return &Services{
		Chat: NewChatService(
			stores.Users(),
			stores.Chats(),
			stores.Messages(),
			stores.Projects(),
			stores.Usage(),
			normalizer,
			dispatcher,
			cfg.Quota.FreeTierMonthlyMessages,
		),
		Models: NewModelService(registry),
	}
}

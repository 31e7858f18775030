package bybit_client

import (
	"webhook_bot/internal/modules/bybit_client/service"
	"webhook_bot/internal/modules/config"

	"go.uber.org/fx"
)

func NewClient(cfg *config.Config) *service.Client {
	return service.NewClient(service.Options{
		BaseURL:    cfg.Bybit.BaseURL,
		APIKey:     cfg.Bybit.APIKey,
		APISecret:  cfg.Bybit.APISecret,
		Category:   cfg.Bybit.Category,
		RecvWindow: cfg.Bybit.RecvWindow,
		Timeout:    cfg.VenueTimeout(),
	})
}

func Module() fx.Option {
	return fx.Module("bybit_client",
		fx.Provide(
			NewClient, // *service.Client
		),
	)
}

package bybit_websocket

import (
	"context"
	bybit "webhook_bot/internal/modules/bybit_client/service"
	"webhook_bot/internal/modules/bybit_websocket/service"
	"webhook_bot/internal/modules/config"
	health "webhook_bot/internal/modules/health/service"
	"webhook_bot/pkg/logger"

	"go.uber.org/fx"
)

func NewClient(cfg *config.Config, rest *bybit.Client, state *health.State) *service.Client {
	return service.NewClient(cfg.Bybit.WSURL, rest, state, cfg.WSMaxAge())
}

// Module поднимает кеш цен из публичного WS Bybit. С ws_enabled=false
// кеш пустой и все цены идут через REST.
func Module() fx.Option {
	return fx.Module("bybit_websocket",
		fx.Provide(
			NewClient, // *service.Client
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, c *service.Client) {
			if !cfg.Bybit.WSEnabled {
				logger.Info("[WS] bybit tickers disabled, prices via REST")
				return
			}
			var cancel context.CancelFunc
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					var ctx context.Context
					ctx, cancel = context.WithCancel(context.Background())
					go func() {
						defer close(done)
						c.Run(ctx)
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-ctx.Done():
					}
					return nil
				},
			})
		}),
	)
}

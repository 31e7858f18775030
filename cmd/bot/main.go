package main

import (
	"context"
	"log"
	"webhook_bot/internal/modules/bybit_client"
	bybit "webhook_bot/internal/modules/bybit_client/service"
	"webhook_bot/internal/modules/bybit_websocket"
	ws "webhook_bot/internal/modules/bybit_websocket/service"
	"webhook_bot/internal/modules/config"
	"webhook_bot/internal/modules/health"
	healthsvc "webhook_bot/internal/modules/health/service"
	"webhook_bot/internal/modules/paper_broker"
	paper "webhook_bot/internal/modules/paper_broker/service"
	telegram "webhook_bot/internal/modules/telegram_bot"
	"webhook_bot/internal/modules/webhook"
	"webhook_bot/internal/runner"
	"webhook_bot/pkg/logger"
	"webhook_bot/pkg/metrics"
	"webhook_bot/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module(),
		fx.Module("observability",
			fx.Invoke(setupObservability),
		),
		fx.Provide(
			metrics.New,
			provideVenue,
			providePrices,
			provideObserver,
		),
		bybit_client.Module(),
		health.Module(),
		bybit_websocket.Module(),
		paper_broker.Module(),
		telegram.Module(),
		runner.Module(),
		webhook.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}

func setupObservability(lc fx.Lifecycle, cfg *config.Config) error {
	if err := logger.Init(cfg.Log.Level); err != nil {
		return err
	}
	logger.SetServiceName(cfg.Service.Name)
	tracing.SetServiceName(cfg.Service.Name)

	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("[BOT] starting, venue=%s risk=%.2f%%", cfg.Venue.Mode, cfg.Trading.RiskPct)
			return nil
		},
		OnStop: func(_ context.Context) error {
			closeTracer()
			logger.Sync()
			return nil
		},
	})
	return nil
}

// provideVenue: paper исполняет локально по живым ценам, live идёт в Bybit.
func provideVenue(cfg *config.Config, broker *paper.Broker, rest *bybit.Client) runner.Venue {
	if cfg.Venue.Mode == config.VenueLive {
		return rest
	}
	return broker
}

// providePrices: в paper цены идут через брокера, чтобы срабатывали его стопы.
func providePrices(cfg *config.Config, broker *paper.Broker, stream *ws.Client) runner.PriceSource {
	if cfg.Venue.Mode == config.VenueLive {
		return stream
	}
	return broker
}

func provideObserver(state *healthsvc.State) runner.CycleObserver {
	return state
}

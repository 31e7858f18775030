package telegram

import (
	"context"
	"webhook_bot/internal/modules/config"
	"webhook_bot/internal/modules/telegram_bot/service"
	"webhook_bot/internal/runner"
	"webhook_bot/internal/runner/positions"
	"webhook_bot/pkg/logger"

	"go.uber.org/fx"
)

// NewNotifier: Telegram, если задан токен, иначе лог.
func NewNotifier(lc fx.Lifecycle, cfg *config.Config, store *positions.Store) (runner.Notifier, error) {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		logger.Info("[TG] token or chat id not set, notifications go to log")
		return service.Stdout{}, nil
	}

	t, err := service.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, store)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			t.Start(context.Background())
			return nil
		},
		OnStop: func(_ context.Context) error {
			t.Stop()
			return nil
		},
	})
	return t, nil
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			NewNotifier, // runner.Notifier
		),
	)
}

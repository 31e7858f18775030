package runner

import (
	"context"
	"time"
	"webhook_bot/internal/models"
	"webhook_bot/pkg/metrics"

	"github.com/shopspring/decimal"
)

// Venue — то, что ядру нужно от биржи.
type Venue interface {
	OpenPositions(ctx context.Context, symbol string) ([]models.ExchangePosition, error)
	AccountBalance(ctx context.Context) (decimal.Decimal, error)
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	PlaceMarketOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error)
	SetStopLoss(ctx context.Context, symbol string, stop decimal.Decimal) error
}

// PriceSource — откуда монитор берёт цену (WS-кеш или REST).
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Notifier — чат (Telegram) или stdout.
type Notifier interface {
	SendF(ctx context.Context, format string, args ...any)
}

// CycleObserver получает отметку о каждом цикле монитора (health).
type CycleObserver interface {
	TouchCycle(t time.Time)
	SetReady(v bool)
}

type nopObserver struct{}

func (nopObserver) TouchCycle(time.Time) {}
func (nopObserver) SetReady(bool)        {}

// callVenue: таймаут на вызов, латентность в метрики, ошибка в VenueError.
func callVenue(
	ctx context.Context,
	timeout time.Duration,
	m *metrics.Metrics,
	op string,
	fn func(ctx context.Context) error,
) error {
	cctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	defer m.ObserveVenue(op)()

	if err := fn(cctx); err != nil {
		return &VenueError{Op: op, Err: err}
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

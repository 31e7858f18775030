package runner

import (
	"context"
	"errors"
	"time"
	"webhook_bot/internal/helper"
	"webhook_bot/internal/models"
	"webhook_bot/internal/runner/dedup"
	"webhook_bot/internal/runner/positions"
	"webhook_bot/internal/runner/sizing"
	"webhook_bot/pkg/logger"
	"webhook_bot/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	StatusIgnored     = "ignored"
	StatusRejected    = "rejected"
	StatusEntryPlaced = "entry_placed"
)

const (
	ReasonUnsupportedType = "unsupported_type"
	ReasonEMANotConfirmed = "ema_not_confirmed"
	ReasonLowVolatility   = "low_volatility"
	ReasonDuplicate       = "duplicate"
	ReasonPositionOpen    = "position_already_open"
	ReasonInvalidRisk     = "invalid_risk"
)

// Result — итог обработки алерта, уходит в HTTP-ответ как есть.
type Result struct {
	Status   string      `json:"status"`
	Reason   string      `json:"reason,omitempty"`
	Symbol   string      `json:"symbol,omitempty"`
	Side     models.Side `json:"side,omitempty"`
	Quantity string      `json:"quantity,omitempty"`
	StopLoss string      `json:"stoploss,omitempty"`
	OrderID  string      `json:"order_id,omitempty"`
}

type ExecutorConfig struct {
	RiskPct      float64
	QuoteSuffix  string
	VenueTimeout time.Duration
}

// Executor ведёт алерт через гейты до рыночного входа.
type Executor struct {
	cfg    ExecutorConfig
	venue  Venue
	store  *positions.Store
	cache  *dedup.Cache
	sizer  sizing.Sizer
	notify Notifier
	m      *metrics.Metrics

	newID func() string
	now   func() time.Time
}

func NewExecutor(
	cfg ExecutorConfig,
	venue Venue,
	store *positions.Store,
	cache *dedup.Cache,
	sizer sizing.Sizer,
	notify Notifier,
	m *metrics.Metrics,
) *Executor {
	if cfg.QuoteSuffix == "" {
		cfg.QuoteSuffix = "USDT"
	}
	return &Executor{
		cfg:    cfg,
		venue:  venue,
		store:  store,
		cache:  cache,
		sizer:  sizer,
		notify: notify,
		m:      m,
		newID:  func() string { return uuid.NewString() },
		now:    time.Now,
	}
}

// Handle прогоняет алерт по гейтам. Бизнес-отказ — это Result, не ошибка.
// Ошибки: *ValidationError (400) и *VenueError (502).
func (e *Executor) Handle(ctx context.Context, p models.AlertPayload) (Result, error) {
	res, err := e.handle(ctx, p)
	switch {
	case err == nil:
		e.m.Alerts.WithLabelValues(res.Status, res.Reason).Inc()
	default:
		var ve *ValidationError
		if errors.As(err, &ve) {
			e.m.Alerts.WithLabelValues("error", ve.Reason).Inc()
		} else {
			e.m.Alerts.WithLabelValues("error", ReasonVenueError).Inc()
		}
	}
	return res, err
}

func (e *Executor) handle(ctx context.Context, p models.AlertPayload) (Result, error) {
	// 1. тип и поля
	alert, ok, err := parseAlert(p)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return ignored(ReasonUnsupportedType, ""), nil
	}

	symbol := helper.InstrumentSymbol(alert.Symbol, e.cfg.QuoteSuffix)
	side := helper.SideFor(alert.Direction)

	// 2. подтверждения
	if alert.EMAConfirm != models.EMAYes {
		return ignored(ReasonEMANotConfirmed, symbol), nil
	}
	if alert.Volatility != models.VolatilityOK {
		return ignored(ReasonLowVolatility, symbol), nil
	}

	// 3. дубль
	fp := dedup.Fingerprint(alert)
	if e.cache.ShouldSuppress(fp) {
		logger.Info("[ALERT] %s %s duplicate, fp=%s", symbol, alert.Direction, fp)
		return ignored(ReasonDuplicate, symbol), nil
	}
	e.m.Fingerprints.Set(float64(e.cache.Len()))

	// 4. открытая позиция; лок держим до регистрации
	unlock := e.store.Lock(symbol)
	defer unlock()

	var open bool
	err = callVenue(ctx, e.cfg.VenueTimeout, e.m, "open_positions", func(ctx context.Context) error {
		var err error
		open, err = e.store.HasOpenPosition(ctx, symbol)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	if open {
		logger.Info("[ALERT] %s already has an open position", symbol)
		return Result{Status: StatusRejected, Reason: ReasonPositionOpen, Symbol: symbol}, nil
	}

	// 5. объём от риска
	var balance decimal.Decimal
	err = callVenue(ctx, e.cfg.VenueTimeout, e.m, "balance", func(ctx context.Context) error {
		var err error
		balance, err = e.venue.AccountBalance(ctx)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	qty, err := e.sizer.ComputeQuantity(alert.Entry, alert.StopLoss, balance, e.cfg.RiskPct)
	if err != nil {
		if errors.Is(err, sizing.ErrInvalidRiskInput) {
			logger.Warn("[ALERT] %s sizing: %v", symbol, err)
			return Result{Status: StatusRejected, Reason: ReasonInvalidRisk, Symbol: symbol}, nil
		}
		return Result{}, err
	}

	// 6. вход; без ретраев, повтор может удвоить позицию
	req := models.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Quantity:      qty,
		StopLoss:      alert.StopLoss,
		TimeInForce:   models.GoodTillCancel,
		ClientOrderID: e.newID(),
	}
	var placed models.OrderResult
	err = callVenue(ctx, e.cfg.VenueTimeout, e.m, "place_order", func(ctx context.Context) error {
		var err error
		placed, err = e.venue.PlaceMarketOrder(ctx, req)
		return err
	})
	if err != nil {
		logger.With(
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.String("qty", qty.String()),
			zap.Error(err),
		).Error("entry order failed")
		return Result{}, err
	}
	e.m.Orders.WithLabelValues("entry", string(side)).Inc()

	e.store.Register(symbol, models.Position{
		Side:       side,
		EntryPrice: alert.Entry,
		StopLoss:   alert.StopLoss,
		TP1:        alert.TP1,
		Quantity:   qty,
		OrderID:    placed.OrderID,
		OpenedAt:   e.now(),
	})
	e.m.TrackedPositions.Set(float64(e.store.Len()))

	logger.Info("[ENTRY] %s %s qty=%s entry=%s sl=%s tp1=%s order=%s",
		symbol, side, qty, alert.Entry, alert.StopLoss, alert.TP1, placed.OrderID)
	e.notify.SendF(ctx, "🚀 %s %s %s\nentry %s | SL %s | TP1 %s",
		side, qty, symbol, alert.Entry, alert.StopLoss, alert.TP1)

	return Result{
		Status:   StatusEntryPlaced,
		Symbol:   symbol,
		Side:     side,
		Quantity: qty.String(),
		StopLoss: alert.StopLoss.String(),
		OrderID:  placed.OrderID,
	}, nil
}

func ignored(reason, symbol string) Result {
	return Result{Status: StatusIgnored, Reason: reason, Symbol: symbol}
}

package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
	"webhook_bot/internal/helper"
	"webhook_bot/internal/models"
	"webhook_bot/internal/runner/positions"
	"webhook_bot/pkg/logger"
	"webhook_bot/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	stagePrice     = "price"
	stageClose     = "partial_close"
	stageStopMove  = "stop_move"
	stageReconcile = "reconcile"
	stagePanic     = "panic"
)

type MonitorConfig struct {
	PollInterval      time.Duration
	Jitter            time.Duration
	ReconcileInterval time.Duration
	// позиции моложе ReconcileGrace сверку пропускают: биржа может ещё не отдать их в списке
	ReconcileGrace time.Duration
	VenueTimeout   time.Duration
	CloseRatio     float64
	QtyPrecision   int32
}

// Monitor следит за TP1 открытых позиций: частичная фиксация и стоп в безубыток.
type Monitor struct {
	cfg    MonitorConfig
	venue  Venue
	prices PriceSource
	store  *positions.Store
	notify Notifier
	m      *metrics.Metrics
	obs    CycleObserver

	now func() time.Time
}

func NewMonitor(
	cfg MonitorConfig,
	venue Venue,
	prices PriceSource,
	store *positions.Store,
	notify Notifier,
	m *metrics.Metrics,
	obs CycleObserver,
) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.CloseRatio <= 0 || cfg.CloseRatio > 1 {
		cfg.CloseRatio = 0.5
	}
	if cfg.QtyPrecision <= 0 {
		cfg.QtyPrecision = 3
	}
	if prices == nil {
		prices = venue
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Monitor{
		cfg:    cfg,
		venue:  venue,
		prices: prices,
		store:  store,
		notify: notify,
		m:      m,
		obs:    obs,
		now:    time.Now,
	}
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// Run крутится до отмены ctx.
func (m *Monitor) Run(ctx context.Context) {
	logger.Info("[MONITOR] ▶️ start, poll=%s jitter=%s reconcile=%s",
		m.cfg.PollInterval, m.cfg.Jitter, m.cfg.ReconcileInterval)

	timer := time.NewTimer(m.nextDelay())
	defer timer.Stop()
	lastReconcile := m.now()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[MONITOR] ⏹ stop")
			return
		case <-timer.C:
			m.RunCycle(ctx)

			if m.cfg.ReconcileInterval > 0 && m.now().Sub(lastReconcile) >= m.cfg.ReconcileInterval {
				m.Reconcile(ctx)
				lastReconcile = m.now()
			}
			timer.Reset(m.nextDelay())
		}
	}
}

func (m *Monitor) nextDelay() time.Duration {
	d := m.cfg.PollInterval
	if m.cfg.Jitter > 0 {
		d += rand.N(m.cfg.Jitter)
	}
	return d
}

// RunCycle — один проход по позициям без TP1. Ошибка одного символа не мешает остальным.
func (m *Monitor) RunCycle(ctx context.Context) {
	m.store.ForEachOpen(func(symbol string, _ models.Position) bool {
		if ctx.Err() != nil {
			return false
		}
		if err := m.processSafe(ctx, symbol); err != nil {
			stage := stagePrice
			var se *stageError
			if errors.As(err, &se) {
				stage = se.stage
			}
			m.m.MonitorErrors.WithLabelValues(stage).Inc()

			// таймаут биржи — повторим на следующем цикле
			var ve *VenueError
			transient := errors.As(err, &ve) && ve.Timeout()
			log := logger.With(
				zap.String("symbol", symbol),
				zap.String("stage", stage),
				zap.Bool("transient", transient),
				zap.Error(err),
			)
			if transient {
				log.Info("monitor venue call timed out")
			} else {
				log.Warn("monitor cycle failed")
			}
		}
		return true
	})
	m.obs.TouchCycle(m.now())
}

func (m *Monitor) processSafe(ctx context.Context, symbol string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &stageError{stage: stagePanic, err: fmt.Errorf("%v", r)}
		}
	}()
	return m.process(ctx, symbol)
}

func (m *Monitor) process(ctx context.Context, symbol string) error {
	unlock := m.store.Lock(symbol)
	defer unlock()

	// перечитываем под локом: сверка могла удалить позицию
	p, ok := m.store.Get(symbol)
	if !ok || p.TP1Hit {
		return nil
	}

	if !p.PartialClosed {
		var price decimal.Decimal
		err := callVenue(ctx, m.cfg.VenueTimeout, m.m, "last_price", func(ctx context.Context) error {
			var err error
			price, err = m.prices.LastPrice(ctx, symbol)
			return err
		})
		if err != nil {
			return &stageError{stage: stagePrice, err: err}
		}
		if !p.TP1Crossed(price) {
			return nil
		}

		closeQty := helper.RoundQty(p.Quantity.Mul(decimal.NewFromFloat(m.cfg.CloseRatio)), m.cfg.QtyPrecision)
		if closeQty.IsPositive() {
			req := models.OrderRequest{
				Symbol:      symbol,
				Side:        p.Side.Opposite(),
				Quantity:    closeQty,
				ReduceOnly:  true,
				TimeInForce: models.ImmediateOrCancel,
			}
			err = callVenue(ctx, m.cfg.VenueTimeout, m.m, "place_order", func(ctx context.Context) error {
				_, err := m.venue.PlaceMarketOrder(ctx, req)
				return err
			})
			if err != nil {
				return &stageError{stage: stageClose, err: err}
			}
			m.m.Orders.WithLabelValues("tp1", string(req.Side)).Inc()
		}
		m.store.MarkPartialClosed(symbol)
		logger.Info("[TP1] %s price=%s >= tp1=%s, closed %s", symbol, price, p.TP1, closeQty)
	}

	// стоп в безубыток; при ошибке PartialClosed остаётся и повторим только это
	err := callVenue(ctx, m.cfg.VenueTimeout, m.m, "set_stop", func(ctx context.Context) error {
		return m.venue.SetStopLoss(ctx, symbol, p.EntryPrice)
	})
	if err != nil {
		return &stageError{stage: stageStopMove, err: err}
	}
	m.store.SetStopLoss(symbol, p.EntryPrice)
	m.store.MarkTP1Hit(symbol)

	logger.Info("[TP1] %s stop moved to break-even %s", symbol, p.EntryPrice)
	m.notify.SendF(ctx, "✅ %s TP1 %s hit\nstop → %s", symbol, p.TP1, p.EntryPrice)
	return nil
}

// Reconcile выкидывает позиции, которых биржа больше не видит.
func (m *Monitor) Reconcile(ctx context.Context) {
	now := m.now()
	for _, p := range m.store.Snapshot() {
		if ctx.Err() != nil {
			return
		}
		if m.cfg.ReconcileGrace > 0 && now.Sub(p.OpenedAt) < m.cfg.ReconcileGrace {
			continue
		}
		if err := m.reconcileOne(ctx, p.Symbol); err != nil {
			m.m.MonitorErrors.WithLabelValues(stageReconcile).Inc()
			logger.Warn("[RECONCILE] %s: %v", p.Symbol, err)
		}
	}
	m.m.TrackedPositions.Set(float64(m.store.Len()))
}

func (m *Monitor) reconcileOne(ctx context.Context, symbol string) error {
	unlock := m.store.Lock(symbol)
	defer unlock()

	var open bool
	err := callVenue(ctx, m.cfg.VenueTimeout, m.m, "open_positions", func(ctx context.Context) error {
		var err error
		open, err = m.store.HasOpenPosition(ctx, symbol)
		return err
	})
	if err != nil {
		return err
	}
	if open {
		return nil
	}
	if m.store.Remove(symbol) {
		logger.Info("[RECONCILE] %s flat on venue, untracked", symbol)
		m.notify.SendF(ctx, "🏁 %s closed", symbol)
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"webhook_bot/internal/models"
	"webhook_bot/pkg/logger"

	"github.com/shopspring/decimal"
)

// PriceSource — публичная цена, по которой исполняем рыночные ордера.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type position struct {
	side models.Side
	size decimal.Decimal
	avg  decimal.Decimal
	stop decimal.Decimal
}

// Broker — бумажная биржа: рыночные ордера исполняются по последней цене,
// стоп срабатывает, когда цена из LastPrice или OpenPositions его пересекает.
type Broker struct {
	prices PriceSource

	mu        sync.Mutex
	balance   decimal.Decimal
	positions map[string]*position

	seq atomic.Int64
}

func NewBroker(prices PriceSource, balance decimal.Decimal) *Broker {
	return &Broker{
		prices:    prices,
		balance:   balance,
		positions: make(map[string]*position),
	}
}

// OpenPositions сначала прогоняет стопы по свежей цене: после TP1 монитор
// цену не спрашивает, а безубыточный стоп должен срабатывать.
func (b *Broker) OpenPositions(ctx context.Context, symbol string) ([]models.ExchangePosition, error) {
	for _, sym := range b.symbols(symbol) {
		px, err := b.prices.LastPrice(ctx, sym)
		if err != nil {
			logger.Warn("[PAPER] %s stop check skipped: %v", sym, err)
			continue
		}
		b.sweepStop(sym, px)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.ExchangePosition, 0, len(b.positions))
	for sym, p := range b.positions {
		if symbol != "" && sym != symbol {
			continue
		}
		out = append(out, models.ExchangePosition{
			Symbol:   sym,
			Side:     p.side,
			Size:     p.size,
			AvgPrice: p.avg,
			StopLoss: p.stop,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (b *Broker) symbols(symbol string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if symbol != "" {
		if _, ok := b.positions[symbol]; ok {
			return []string{symbol}
		}
		return nil
	}
	out := make([]string, 0, len(b.positions))
	for sym := range b.positions {
		out = append(out, sym)
	}
	return out
}

// AccountBalance — стартовый баланс плюс реализованный PnL.
func (b *Broker) AccountBalance(context.Context) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance, nil
}

// LastPrice отдаёт цену источника и заодно проверяет стоп по символу.
func (b *Broker) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	px, err := b.prices.LastPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	b.sweepStop(symbol, px)
	return px, nil
}

// sweepStop закрывает позицию по цене стопа, если px его пересекла.
func (b *Broker) sweepStop(symbol string, px decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.positions[symbol]; ok && p.stop.IsPositive() && stopCrossed(p, px) {
		stop := p.stop
		pnl := b.closeLocked(symbol, p, p.size, stop)
		logger.Info("[PAPER] %s stop %s hit at %s, pnl=%s", symbol, stop, px, pnl)
	}
}

func (b *Broker) PlaceMarketOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	if !req.Quantity.IsPositive() {
		return models.OrderResult{}, fmt.Errorf("paper: qty must be > 0")
	}
	px, err := b.prices.LastPrice(ctx, req.Symbol)
	if err != nil {
		return models.OrderResult{}, fmt.Errorf("paper: price %s: %w", req.Symbol, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p, open := b.positions[req.Symbol]
	switch {
	case req.ReduceOnly:
		if !open || p.side == req.Side {
			if req.TimeInForce == models.ImmediateOrCancel {
				// IOC: закрывать нечего, ордер просто отменён
				return b.result(req), nil
			}
			return models.OrderResult{}, fmt.Errorf("paper: reduce-only %s: no opposite position", req.Symbol)
		}
		qty := decimal.Min(req.Quantity, p.size)
		pnl := b.closeLocked(req.Symbol, p, qty, px)
		logger.Info("[PAPER] %s reduce %s @ %s, pnl=%s", req.Symbol, qty, px, pnl)

	case open && p.side != req.Side:
		return models.OrderResult{}, fmt.Errorf("paper: %s has opposite position, use reduce-only", req.Symbol)

	case open:
		total := p.size.Add(req.Quantity)
		p.avg = p.avg.Mul(p.size).Add(px.Mul(req.Quantity)).Div(total)
		p.size = total
		if req.StopLoss.IsPositive() {
			p.stop = req.StopLoss
		}

	default:
		b.positions[req.Symbol] = &position{
			side: req.Side,
			size: req.Quantity,
			avg:  px,
			stop: req.StopLoss,
		}
		logger.Info("[PAPER] %s open %s %s @ %s sl=%s", req.Symbol, req.Side, req.Quantity, px, req.StopLoss)
	}
	return b.result(req), nil
}

func (b *Broker) SetStopLoss(_ context.Context, symbol string, stop decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[symbol]
	if !ok {
		return fmt.Errorf("paper: no position %s", symbol)
	}
	p.stop = stop
	return nil
}

func (b *Broker) result(req models.OrderRequest) models.OrderResult {
	return models.OrderResult{
		OrderID:       "paper-" + strconv.FormatInt(b.seq.Add(1), 10),
		ClientOrderID: req.ClientOrderID,
	}
}

// closeLocked закрывает qty по цене px, возвращает реализованный PnL.
func (b *Broker) closeLocked(symbol string, p *position, qty, px decimal.Decimal) decimal.Decimal {
	pnl := px.Sub(p.avg).Mul(qty)
	if p.side == models.SideSell {
		pnl = pnl.Neg()
	}
	b.balance = b.balance.Add(pnl)
	p.size = p.size.Sub(qty)
	if !p.size.IsPositive() {
		delete(b.positions, symbol)
	}
	return pnl
}

func stopCrossed(p *position, px decimal.Decimal) bool {
	if p.side == models.SideBuy {
		return px.LessThanOrEqual(p.stop)
	}
	return px.GreaterThanOrEqual(p.stop)
}

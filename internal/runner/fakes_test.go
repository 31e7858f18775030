package runner

import (
	"context"
	"fmt"
	"sync"
	"time"
	"webhook_bot/internal/models"
	"webhook_bot/internal/runner/dedup"
	"webhook_bot/internal/runner/positions"
	"webhook_bot/internal/runner/sizing"
	"webhook_bot/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
)

type fakeVenue struct {
	mu sync.Mutex

	balance  decimal.Decimal
	prices   map[string]decimal.Decimal
	open     map[string]models.ExchangePosition
	orders   []models.OrderRequest
	stops    map[string]decimal.Decimal
	placeDur time.Duration

	balanceErr error
	listErr    error
	priceErr   map[string]error
	placeErr   error
	stopErr    error
	pricePanic string
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{
		balance:  decimal.NewFromInt(10000),
		prices:   map[string]decimal.Decimal{},
		open:     map[string]models.ExchangePosition{},
		stops:    map[string]decimal.Decimal{},
		priceErr: map[string]error{},
	}
}

func (f *fakeVenue) OpenPositions(_ context.Context, symbol string) ([]models.ExchangePosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if p, ok := f.open[symbol]; ok {
		return []models.ExchangePosition{p}, nil
	}
	return nil, nil
}

func (f *fakeVenue) AccountBalance(context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, f.balanceErr
}

func (f *fakeVenue) LastPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if symbol == f.pricePanic {
		panic("price feed exploded")
	}
	if err := f.priceErr[symbol]; err != nil {
		return decimal.Zero, err
	}
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s", symbol)
	}
	return p, nil
}

func (f *fakeVenue) PlaceMarketOrder(_ context.Context, req models.OrderRequest) (models.OrderResult, error) {
	if f.placeDur > 0 {
		time.Sleep(f.placeDur)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return models.OrderResult{}, f.placeErr
	}
	f.orders = append(f.orders, req)
	if !req.ReduceOnly {
		f.open[req.Symbol] = models.ExchangePosition{
			Symbol: req.Symbol, Side: req.Side, Size: req.Quantity, StopLoss: req.StopLoss,
		}
	}
	return models.OrderResult{
		OrderID:       fmt.Sprintf("ord-%d", len(f.orders)),
		ClientOrderID: req.ClientOrderID,
	}, nil
}

func (f *fakeVenue) SetStopLoss(_ context.Context, symbol string, stop decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stops[symbol] = stop
	return nil
}

func (f *fakeVenue) setPrice(symbol string, p float64) {
	f.mu.Lock()
	f.prices[symbol] = decimal.NewFromFloat(p)
	f.mu.Unlock()
}

func (f *fakeVenue) orderList() []models.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderRequest(nil), f.orders...)
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) SendF(_ context.Context, format string, args ...any) {
	n.mu.Lock()
	n.msgs = append(n.msgs, fmt.Sprintf(format, args...))
	n.mu.Unlock()
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

type fakeObserver struct {
	mu     sync.Mutex
	cycles int
	ready  bool
}

func (o *fakeObserver) TouchCycle(time.Time) {
	o.mu.Lock()
	o.cycles++
	o.mu.Unlock()
}

func (o *fakeObserver) SetReady(v bool) {
	o.mu.Lock()
	o.ready = v
	o.mu.Unlock()
}

type harness struct {
	venue  *fakeVenue
	store  *positions.Store
	cache  *dedup.Cache
	notify *fakeNotifier
	m      *metrics.Metrics
	exec   *Executor
}

func newHarness() *harness {
	v := newFakeVenue()
	store := positions.NewStore(v)
	cache := dedup.New(time.Minute, 10*time.Minute)
	n := &fakeNotifier{}
	m := metrics.New()
	exec := NewExecutor(
		ExecutorConfig{RiskPct: 0.5, QuoteSuffix: "USDT", VenueTimeout: time.Second},
		v, store, cache, sizing.New(3), n, m,
	)
	return &harness{venue: v, store: store, cache: cache, notify: n, m: m, exec: exec}
}

func str(s string) *string { return &s }

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func btcLong() models.AlertPayload {
	return models.AlertPayload{
		Type:       str("ENTRY"),
		Symbol:     str("BTC"),
		Timeframe:  "15",
		Direction:  str("LONG"),
		Entry:      dec("100"),
		StopLoss:   dec("90"),
		TP1:        dec("120"),
		EMAConfirm: str("YES"),
		Volatility: str("OK"),
		Confidence: "HIGH",
	}
}

// metricValue — текущее значение счётчика или гейджа.
func metricValue(m prometheus.Metric) float64 {
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return -1
	}
	if c := out.GetCounter(); c != nil {
		return c.GetValue()
	}
	return out.GetGauge().GetValue()
}

package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"webhook_bot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_BTCScenario(t *testing.T) {
	h := newHarness()
	h.exec.newID = func() string { return "cid-1" }

	res, err := h.exec.Handle(context.Background(), btcLong())
	require.NoError(t, err)

	assert.Equal(t, StatusEntryPlaced, res.Status)
	assert.Equal(t, "BTCUSDT", res.Symbol)
	assert.Equal(t, models.SideBuy, res.Side)
	assert.Equal(t, "5", res.Quantity)
	assert.Equal(t, "ord-1", res.OrderID)

	orders := h.venue.orderList()
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, "BTCUSDT", o.Symbol)
	assert.Equal(t, models.SideBuy, o.Side)
	assert.True(t, o.Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, o.StopLoss.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, models.GoodTillCancel, o.TimeInForce)
	assert.False(t, o.ReduceOnly)
	assert.Equal(t, "cid-1", o.ClientOrderID)

	p, ok := h.store.Get("BTCUSDT")
	require.True(t, ok)
	assert.False(t, p.TP1Hit)
	assert.True(t, p.TP1.Equal(decimal.NewFromInt(120)))
	assert.True(t, p.EntryPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, h.notify.count())

	assert.Equal(t, 1.0, metricValue(h.m.Alerts.WithLabelValues(StatusEntryPlaced, "")))
	assert.Equal(t, 1.0, metricValue(h.m.TrackedPositions))
}

func TestHandle_ShortMapsToSell(t *testing.T) {
	h := newHarness()
	p := btcLong()
	p.Symbol = str("ethusdt")
	p.Direction = str("short")
	p.Entry = dec("100")
	p.StopLoss = dec("110")
	p.TP1 = dec("80")

	res, err := h.exec.Handle(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", res.Symbol, "suffix is not doubled")
	assert.Equal(t, models.SideSell, res.Side)
}

func TestHandle_ConfirmationGate(t *testing.T) {
	cases := []struct {
		name   string
		ema    string
		vol    string
		reason string
	}{
		{"ema no", "NO", "OK", ReasonEMANotConfirmed},
		{"low vol", "YES", "LOW", ReasonLowVolatility},
		{"both", "NO", "LOW", ReasonEMANotConfirmed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			p := btcLong()
			p.EMAConfirm = str(tc.ema)
			p.Volatility = str(tc.vol)

			res, err := h.exec.Handle(context.Background(), p)
			require.NoError(t, err)
			assert.Equal(t, StatusIgnored, res.Status)
			assert.Equal(t, tc.reason, res.Reason)
			assert.Empty(t, h.venue.orderList())
			assert.Equal(t, 0, h.store.Len())
			assert.Equal(t, 0, h.cache.Len(), "gate has no side effects")
		})
	}
}

func TestHandle_UnsupportedType(t *testing.T) {
	h := newHarness()
	p := btcLong()
	p.Type = str("EXIT")

	res, err := h.exec.Handle(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)
	assert.Equal(t, ReasonUnsupportedType, res.Reason)
}

func TestHandle_ValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p *models.AlertPayload)
		reason string
		field  string
	}{
		{"no type", func(p *models.AlertPayload) { p.Type = nil }, ReasonMissingField, "type"},
		{"no symbol", func(p *models.AlertPayload) { p.Symbol = str(" ") }, ReasonMissingField, "symbol"},
		{"no direction", func(p *models.AlertPayload) { p.Direction = nil }, ReasonMissingField, "direction"},
		{"bad direction", func(p *models.AlertPayload) { p.Direction = str("UP") }, ReasonInvalidField, "direction"},
		{"no entry", func(p *models.AlertPayload) { p.Entry = decimal.NullDecimal{} }, ReasonMissingField, "entry"},
		{"no stop", func(p *models.AlertPayload) { p.StopLoss = decimal.NullDecimal{} }, ReasonMissingField, "stoploss"},
		{"negative tp1", func(p *models.AlertPayload) { p.TP1 = dec("-1") }, ReasonInvalidField, "tp1"},
		{"no ema", func(p *models.AlertPayload) { p.EMAConfirm = nil }, ReasonMissingField, "ema_confirm"},
		{"bad vol", func(p *models.AlertPayload) { p.Volatility = str("HIGH") }, ReasonInvalidField, "volatility"},
		{"bad confidence", func(p *models.AlertPayload) { p.Confidence = "LOW" }, ReasonInvalidField, "confidence"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			p := btcLong()
			tc.mutate(&p)

			_, err := h.exec.Handle(context.Background(), p)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.reason, ve.Reason)
			assert.Equal(t, tc.field, ve.Field)
			assert.Empty(t, h.venue.orderList())
		})
	}
}

func TestHandle_Duplicate(t *testing.T) {
	h := newHarness()
	now := time.Unix(1_700_000_000, 0)
	h.cache.WithClock(func() time.Time { return now })

	res, err := h.exec.Handle(context.Background(), btcLong())
	require.NoError(t, err)
	require.Equal(t, StatusEntryPlaced, res.Status)

	// тот же сигнал, позицию уже закрыли руками
	h.venue.open = map[string]models.ExchangePosition{}
	now = now.Add(30 * time.Second)
	res, err = h.exec.Handle(context.Background(), btcLong())
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)
	assert.Equal(t, ReasonDuplicate, res.Reason)
	assert.Len(t, h.venue.orderList(), 1)

	now = now.Add(31 * time.Second)
	res, err = h.exec.Handle(context.Background(), btcLong())
	require.NoError(t, err)
	assert.Equal(t, StatusEntryPlaced, res.Status)
	assert.Len(t, h.venue.orderList(), 2)
}

func TestHandle_PositionAlreadyOpen(t *testing.T) {
	h := newHarness()
	h.venue.open["BTCUSDT"] = models.ExchangePosition{
		Symbol: "BTCUSDT", Side: models.SideSell, Size: decimal.NewFromInt(1),
	}

	res, err := h.exec.Handle(context.Background(), btcLong())
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonPositionOpen, res.Reason)
	assert.Empty(t, h.venue.orderList())
}

func TestHandle_InvalidRisk(t *testing.T) {
	h := newHarness()
	p := btcLong()
	p.StopLoss = dec("100")

	res, err := h.exec.Handle(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonInvalidRisk, res.Reason)
	assert.Empty(t, h.venue.orderList())
}

func TestHandle_VenueErrors(t *testing.T) {
	boom := errors.New("insufficient margin")

	t.Run("place", func(t *testing.T) {
		h := newHarness()
		h.venue.placeErr = boom

		_, err := h.exec.Handle(context.Background(), btcLong())
		var ve *VenueError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "place_order", ve.Op)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, h.store.Len(), "nothing registered on failure")
		assert.Equal(t, 0, h.notify.count())
	})

	t.Run("balance", func(t *testing.T) {
		h := newHarness()
		h.venue.balanceErr = boom

		_, err := h.exec.Handle(context.Background(), btcLong())
		var ve *VenueError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "balance", ve.Op)
		assert.Empty(t, h.venue.orderList())
	})

	t.Run("positions", func(t *testing.T) {
		h := newHarness()
		h.venue.listErr = boom

		_, err := h.exec.Handle(context.Background(), btcLong())
		var ve *VenueError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "open_positions", ve.Op)
	})
}

func TestHandle_ConcurrentSameSymbolPlacesOnce(t *testing.T) {
	h := newHarness()
	h.venue.placeDur = 5 * time.Millisecond

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []Result
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := btcLong()
			// разные entry — разные отпечатки, дедуп не помогает
			p.Entry = decimal.NewNullDecimal(decimal.NewFromInt(int64(100 + i)))
			res, err := h.exec.Handle(context.Background(), p)
			assert.NoError(t, err)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	placed := 0
	for _, r := range results {
		if r.Status == StatusEntryPlaced {
			placed++
		} else {
			assert.Equal(t, ReasonPositionOpen, r.Reason)
		}
	}
	assert.Equal(t, 1, placed)
	assert.Len(t, h.venue.orderList(), 1)
	assert.Equal(t, 1, h.store.Len())
}

package positions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"webhook_bot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	positions []models.ExchangePosition
	err       error
	calls     atomic.Int32
}

func (f *fakeLister) OpenPositions(_ context.Context, _ string) ([]models.ExchangePosition, error) {
	f.calls.Add(1)
	return f.positions, f.err
}

func pos(symbol string) models.Position {
	return models.Position{
		Symbol:     symbol,
		Side:       models.SideBuy,
		EntryPrice: decimal.NewFromInt(100),
		TP1:        decimal.NewFromInt(120),
		Quantity:   decimal.NewFromInt(5),
	}
}

func TestHasOpenPosition_AsksVenue(t *testing.T) {
	venue := &fakeLister{}
	s := NewStore(venue)

	// локальная запись не влияет на ответ
	s.Register("BTCUSDT", pos("BTCUSDT"))
	open, err := s.HasOpenPosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, open)
	assert.Equal(t, int32(1), venue.calls.Load())

	venue.positions = []models.ExchangePosition{
		{Symbol: "BTCUSDT", Side: models.SideBuy, Size: decimal.Zero},
	}
	open, err = s.HasOpenPosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, open, "zero size is flat")

	venue.positions[0].Size = decimal.RequireFromString("0.5")
	open, err = s.HasOpenPosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, open)
}

func TestHasOpenPosition_VenueError(t *testing.T) {
	boom := errors.New("boom")
	s := NewStore(&fakeLister{err: boom})
	_, err := s.HasOpenPosition(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, boom)
}

func TestRegisterGetAndFlags(t *testing.T) {
	s := NewStore(&fakeLister{})
	s.Register("ETHUSDT", pos("ignored"))

	p, ok := s.Get("ETHUSDT")
	require.True(t, ok)
	assert.Equal(t, "ETHUSDT", p.Symbol, "key wins")
	assert.False(t, p.TP1Hit)

	// Get отдаёт копию
	p.TP1Hit = true
	p2, _ := s.Get("ETHUSDT")
	assert.False(t, p2.TP1Hit)

	assert.True(t, s.MarkPartialClosed("ETHUSDT"))
	p, _ = s.Get("ETHUSDT")
	assert.True(t, p.PartialClosed)
	assert.False(t, p.TP1Hit)

	assert.True(t, s.SetStopLoss("ETHUSDT", decimal.NewFromInt(100)))
	assert.True(t, s.MarkTP1Hit("ETHUSDT"))
	p, _ = s.Get("ETHUSDT")
	assert.True(t, p.TP1Hit)
	assert.True(t, p.StopLoss.Equal(decimal.NewFromInt(100)))

	assert.False(t, s.MarkTP1Hit("NOPE"))
	assert.True(t, s.Remove("ETHUSDT"))
	assert.False(t, s.Remove("ETHUSDT"))
	assert.Equal(t, 0, s.Len())
}

func TestForEachOpen_SkipsTP1Hit(t *testing.T) {
	s := NewStore(&fakeLister{})
	s.Register("BTCUSDT", pos("BTCUSDT"))
	s.Register("ETHUSDT", pos("ETHUSDT"))
	s.Register("SOLUSDT", pos("SOLUSDT"))
	s.MarkTP1Hit("ETHUSDT")

	var seen []string
	s.ForEachOpen(func(symbol string, p models.Position) bool {
		seen = append(seen, symbol)
		// мутация стора во время обхода не дедлочится
		s.MarkPartialClosed(symbol)
		return true
	})
	assert.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, seen)

	seen = nil
	s.ForEachOpen(func(symbol string, _ models.Position) bool {
		seen = append(seen, symbol)
		return false
	})
	assert.Len(t, seen, 1)
}

func TestLock_SerializesPerSymbol(t *testing.T) {
	s := NewStore(&fakeLister{})

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("BTCUSDT")
			defer unlock()

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, s.locks.size(), "idle locks are released")
}

func TestLock_DifferentSymbolsIndependent(t *testing.T) {
	s := NewStore(&fakeLister{})
	unlockBTC := s.Lock("BTCUSDT")
	defer unlockBTC()

	done := make(chan struct{})
	go func() {
		unlock := s.Lock("ETHUSDT")
		unlock()
		unlock() // повторный вызов безопасен
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on ETHUSDT blocked by BTCUSDT")
	}
}

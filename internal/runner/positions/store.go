package positions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"webhook_bot/internal/models"

	"github.com/shopspring/decimal"
)

// PositionLister — источник правды об открытых позициях (биржа).
type PositionLister interface {
	OpenPositions(ctx context.Context, symbol string) ([]models.ExchangePosition, error)
}

// Store — позиции, которыми управляет бот. Ключ — symbol.
type Store struct {
	venue PositionLister

	mu        sync.RWMutex
	positions map[string]*models.Position

	locks symbolLocks
}

func NewStore(venue PositionLister) *Store {
	return &Store{
		venue:     venue,
		positions: make(map[string]*models.Position),
		locks:     symbolLocks{m: make(map[string]*symbolLock)},
	}
}

// HasOpenPosition всегда спрашивает биржу: локальный стейт не видит
// позиций, открытых/закрытых мимо процесса.
func (s *Store) HasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	list, err := s.venue.OpenPositions(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("open positions %s: %w", symbol, err)
	}
	for _, p := range list {
		if p.Symbol == symbol && p.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Register(symbol string, p models.Position) {
	p.Symbol = symbol
	s.mu.Lock()
	s.positions[symbol] = &p
	s.mu.Unlock()
}

func (s *Store) Get(symbol string) (models.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	if !ok {
		return models.Position{}, false
	}
	return *p, true
}

// Snapshot — копия всех позиций, отсортированная по symbol.
func (s *Store) Snapshot() []models.Position {
	s.mu.RLock()
	out := make([]models.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ForEachOpen обходит снапшот позиций, у которых ещё не сработал TP1.
// fn вызывается без удержания мьютекса стора.
func (s *Store) ForEachOpen(fn func(symbol string, p models.Position) bool) {
	for _, p := range s.Snapshot() {
		if p.TP1Hit {
			continue
		}
		if !fn(p.Symbol, p) {
			return
		}
	}
}

func (s *Store) MarkPartialClosed(symbol string) bool {
	return s.update(symbol, func(p *models.Position) { p.PartialClosed = true })
}

func (s *Store) MarkTP1Hit(symbol string) bool {
	return s.update(symbol, func(p *models.Position) {
		p.PartialClosed = true
		p.TP1Hit = true
	})
}

// SetStopLoss запоминает, где сейчас стоит стоп.
func (s *Store) SetStopLoss(symbol string, stop decimal.Decimal) bool {
	return s.update(symbol, func(p *models.Position) { p.StopLoss = stop })
}

func (s *Store) Remove(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[symbol]; !ok {
		return false
	}
	delete(s.positions, symbol)
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// Lock — эксклюзивный доступ к символу от проверки гейтов до регистрации.
func (s *Store) Lock(symbol string) (unlock func()) {
	return s.locks.lock(symbol)
}

func (s *Store) update(symbol string, fn func(p *models.Position)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[symbol]
	if !ok {
		return false
	}
	fn(p)
	return true
}

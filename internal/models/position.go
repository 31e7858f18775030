package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side — сторона ордера в терминах Bybit.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Opposite нужен для reduce-only закрытия.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Position — позиция, которой управляет бот. Ключ — Symbol.
type Position struct {
	Symbol     string
	Side       Side
	EntryPrice decimal.Decimal
	StopLoss   decimal.Decimal
	TP1        decimal.Decimal
	Quantity   decimal.Decimal // исходный объём входа

	// PartialClosed: частичная фиксация уже ушла, но стоп в БУ ещё не переставлен.
	PartialClosed bool
	TP1Hit        bool

	OrderID  string
	OpenedAt time.Time
}

// TP1Crossed — достигнут ли TP1 при цене price.
func (p Position) TP1Crossed(price decimal.Decimal) bool {
	if p.Side == SideBuy {
		return price.GreaterThanOrEqual(p.TP1)
	}
	return price.LessThanOrEqual(p.TP1)
}

// ExchangePosition — позиция так, как её видит биржа.
type ExchangePosition struct {
	Symbol   string
	Side     Side
	Size     decimal.Decimal
	AvgPrice decimal.Decimal
	StopLoss decimal.Decimal
}

func (p ExchangePosition) Open() bool {
	return p.Size.IsPositive()
}

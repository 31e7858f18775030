package models

import "github.com/shopspring/decimal"

type AlertType string

const (
	AlertEntry AlertType = "ENTRY"
)

// Direction как приходит из TradingView: LONG/SHORT.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

type EMAConfirm string

const (
	EMAYes EMAConfirm = "YES"
	EMANo  EMAConfirm = "NO"
)

type Volatility string

const (
	VolatilityOK  Volatility = "OK"
	VolatilityLow Volatility = "LOW"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
)

// Alert — провалидированный алерт, иммутабельный после приёма.
type Alert struct {
	Type       AlertType
	Symbol     string
	Exchange   string
	Timeframe  string
	Direction  Direction
	Entry      decimal.Decimal
	StopLoss   decimal.Decimal
	TP1        decimal.Decimal
	TP2        decimal.Decimal
	TP3        decimal.Decimal
	EMAConfirm EMAConfirm
	Volatility Volatility
	Confidence Confidence
}

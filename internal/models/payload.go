package models

import "github.com/shopspring/decimal"

// AlertPayload — JSON от TradingView как есть. Указатели и NullDecimal
// нужны, чтобы отличить отсутствующее поле от пустого.
//
//	{
//	  "type": "ENTRY", "symbol": "BTC", "exchange": "BYBIT", "timeframe": "15",
//	  "direction": "LONG", "entry": "100", "stoploss": "90",
//	  "tp1": "120", "tp2": "130", "tp3": "140",
//	  "ema_confirm": "YES", "volatility": "OK", "confidence": "HIGH"
//	}
type AlertPayload struct {
	Type       *string             `json:"type"`
	Symbol     *string             `json:"symbol"`
	Exchange   string              `json:"exchange"`
	Timeframe  string              `json:"timeframe"`
	Direction  *string             `json:"direction"`
	Entry      decimal.NullDecimal `json:"entry"`
	StopLoss   decimal.NullDecimal `json:"stoploss"`
	TP1        decimal.NullDecimal `json:"tp1"`
	TP2        decimal.NullDecimal `json:"tp2"`
	TP3        decimal.NullDecimal `json:"tp3"`
	EMAConfirm *string             `json:"ema_confirm"`
	Volatility *string             `json:"volatility"`
	Confidence string              `json:"confidence"`

	// Общий секрет вебхука, в алерт не попадает.
	Passphrase string `json:"passphrase"`
}

package helper

import (
	"strings"
	"webhook_bot/internal/models"

	"github.com/shopspring/decimal"
)

// NormSymbol: " btc " -> "BTC". Биржевые префиксы вида "BYBIT:" срезаем.
func NormSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".P")
	return s
}

// InstrumentSymbol: "BTC" + "USDT" -> "BTCUSDT". Если {{ticker}} уже
// прислал "BTCUSDT" — второй суффикс не клеим.
func InstrumentSymbol(base, quote string) string {
	s := NormSymbol(base)
	q := strings.ToUpper(strings.TrimSpace(quote))
	if q == "" || strings.HasSuffix(s, q) {
		return s
	}
	return s + q
}

// SideFor: LONG -> Buy, SHORT -> Sell.
func SideFor(d models.Direction) models.Side {
	if d == models.DirectionShort {
		return models.SideSell
	}
	return models.SideBuy
}

// NormTF: "15" -> "15m", "1H" -> "1h". Нужен только для отпечатка сигнала.
func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "":
		return ""
	case "60", "60m", "1h":
		return "1h"
	case "240", "4h":
		return "4h"
	case "d", "1d":
		return "1d"
	}
	if strings.Trim(s, "0123456789") == "" {
		return s + "m"
	}
	return s
}

// RoundQty округляет объём до places знаков (half-up).
func RoundQty(q decimal.Decimal, places int32) decimal.Decimal {
	return q.Round(places)
}

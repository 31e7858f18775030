package runner

import (
	"strings"
	"webhook_bot/internal/models"

	"github.com/shopspring/decimal"
)

// parseAlert — Type/Field гейт. ok=false без ошибки: тип не ENTRY, игнорируем.
func parseAlert(p models.AlertPayload) (a models.Alert, ok bool, err error) {
	if p.Type == nil || strings.TrimSpace(*p.Type) == "" {
		return a, false, missingField("type")
	}
	a.Type = models.AlertType(upper(*p.Type))
	if a.Type != models.AlertEntry {
		return a, false, nil
	}

	if p.Symbol == nil || strings.TrimSpace(*p.Symbol) == "" {
		return a, false, missingField("symbol")
	}
	a.Symbol = strings.TrimSpace(*p.Symbol)

	if p.Direction == nil {
		return a, false, missingField("direction")
	}
	a.Direction = models.Direction(upper(*p.Direction))
	if !a.Direction.Valid() {
		return a, false, invalidField("direction", "want LONG or SHORT")
	}

	prices := []struct {
		name string
		src  decimal.NullDecimal
		dst  *decimal.Decimal
	}{
		{"entry", p.Entry, &a.Entry},
		{"stoploss", p.StopLoss, &a.StopLoss},
		{"tp1", p.TP1, &a.TP1},
	}
	for _, f := range prices {
		if !f.src.Valid {
			return a, false, missingField(f.name)
		}
		if !f.src.Decimal.IsPositive() {
			return a, false, invalidField(f.name, "must be > 0")
		}
		*f.dst = f.src.Decimal
	}
	// tp2/tp3 не обязательны, монитор работает только с TP1
	if p.TP2.Valid {
		a.TP2 = p.TP2.Decimal
	}
	if p.TP3.Valid {
		a.TP3 = p.TP3.Decimal
	}

	if p.EMAConfirm == nil {
		return a, false, missingField("ema_confirm")
	}
	a.EMAConfirm = models.EMAConfirm(upper(*p.EMAConfirm))
	if a.EMAConfirm != models.EMAYes && a.EMAConfirm != models.EMANo {
		return a, false, invalidField("ema_confirm", "want YES or NO")
	}

	if p.Volatility == nil {
		return a, false, missingField("volatility")
	}
	a.Volatility = models.Volatility(upper(*p.Volatility))
	if a.Volatility != models.VolatilityOK && a.Volatility != models.VolatilityLow {
		return a, false, invalidField("volatility", "want OK or LOW")
	}

	if c := upper(p.Confidence); c != "" {
		a.Confidence = models.Confidence(c)
		if a.Confidence != models.ConfidenceHigh && a.Confidence != models.ConfidenceMedium {
			return a, false, invalidField("confidence", "want HIGH or MEDIUM")
		}
	}

	a.Exchange = strings.TrimSpace(p.Exchange)
	a.Timeframe = strings.TrimSpace(p.Timeframe)
	return a, true, nil
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

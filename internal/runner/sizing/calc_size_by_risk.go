package sizing

import (
	"errors"
	"fmt"
	"webhook_bot/internal/helper"

	"github.com/shopspring/decimal"
)

// ErrInvalidRiskInput — из входа нельзя получить осмысленный объём
// (нулевая дистанция до стопа, пустой баланс, нулевой риск).
var ErrInvalidRiskInput = errors.New("invalid risk input")

const DefaultPrecision int32 = 3

var hundred = decimal.NewFromInt(100)

type Sizer struct {
	Precision int32 // знаков после запятой у объёма
}

func New(precision int32) Sizer {
	return Sizer{Precision: precision}
}

// ComputeQuantity считает объём так, чтобы потеря по стопу была равна
// riskPct от баланса:
//
//	riskAmount   = balance * riskPct / 100
//	stopDistance = |entry - stop|
//	quantity     = riskAmount / stopDistance
func (s Sizer) ComputeQuantity(entry, stop, balance decimal.Decimal, riskPct float64) (decimal.Decimal, error) {
	if !entry.IsPositive() || !stop.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: entry/stop must be > 0 (entry=%s stop=%s)", ErrInvalidRiskInput, entry, stop)
	}
	if !balance.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: balance <= 0 (%s)", ErrInvalidRiskInput, balance)
	}
	if riskPct <= 0 {
		return decimal.Zero, fmt.Errorf("%w: riskPct <= 0 (%v)", ErrInvalidRiskInput, riskPct)
	}

	stopDistance := entry.Sub(stop).Abs()
	if stopDistance.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: zero stop distance", ErrInvalidRiskInput)
	}

	riskAmount := RiskAmount(balance, riskPct)
	qty := helper.RoundQty(riskAmount.Div(stopDistance), s.Precision)
	if !qty.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: quantity rounds to zero (risk=%s dist=%s)", ErrInvalidRiskInput, riskAmount, stopDistance)
	}
	return qty, nil
}

// RiskAmount — сколько денег теряем по стопу.
func RiskAmount(balance decimal.Decimal, riskPct float64) decimal.Decimal {
	return balance.Mul(decimal.NewFromFloat(riskPct)).Div(hundred)
}

// ComputeQuantity с точностью по умолчанию.
func ComputeQuantity(entry, stop, balance decimal.Decimal, riskPct float64) (decimal.Decimal, error) {
	return New(DefaultPrecision).ComputeQuantity(entry, stop, balance, riskPct)
}

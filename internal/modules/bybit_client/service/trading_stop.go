package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SetStopLoss переставляет стоп всей позиции (tpslMode=Full).
func (c *Client) SetStopLoss(ctx context.Context, symbol string, stop decimal.Decimal) error {
	if !stop.IsPositive() {
		return errors.Errorf("set stop %s: stop <= 0", symbol)
	}
	body := tradingStopRequest{
		Category:    c.category,
		Symbol:      symbol,
		StopLoss:    stop.String(),
		TpslMode:    "Full",
		SlTriggerBy: "LastPrice",
		PositionIdx: 0,
	}

	err := c.postJSON(ctx, "trading_stop", "/v5/position/trading-stop", body, nil)
	var api *APIError
	if errors.As(err, &api) && api.RetCode == retCodeNotChanged {
		// стоп уже там, где надо
		return nil
	}
	return err
}

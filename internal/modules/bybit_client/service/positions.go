package service

import (
	"context"
	"net/url"
	"webhook_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// OpenPositions — GET /v5/position/list. Пустые (size=0) строки отбрасываем.
func (c *Client) OpenPositions(ctx context.Context, symbol string) ([]models.ExchangePosition, error) {
	q := url.Values{}
	q.Set("category", c.category)
	if symbol != "" {
		q.Set("symbol", symbol)
	} else {
		q.Set("settleCoin", "USDT")
	}

	var res positionList
	if err := c.getJSON(ctx, "position_list", "/v5/position/list", q, true, &res); err != nil {
		return nil, err
	}

	out := make([]models.ExchangePosition, 0, len(res.List))
	for _, p := range res.List {
		size, err := parseDecimal(p.Size)
		if err != nil {
			return nil, errors.Wrapf(err, "position %s size", p.Symbol)
		}
		if !size.IsPositive() {
			continue
		}
		avg, err := parseDecimal(p.AvgPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "position %s avgPrice", p.Symbol)
		}
		sl, err := parseDecimal(p.StopLoss)
		if err != nil {
			return nil, errors.Wrapf(err, "position %s stopLoss", p.Symbol)
		}
		out = append(out, models.ExchangePosition{
			Symbol:   p.Symbol,
			Side:     models.Side(p.Side),
			Size:     size,
			AvgPrice: avg,
			StopLoss: sl,
		})
	}
	return out, nil
}

// parseDecimal: Bybit отдаёт "" вместо нуля.
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

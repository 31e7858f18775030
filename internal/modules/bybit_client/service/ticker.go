package service

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// LastPrice — публичный тикер, подпись не нужна.
func (c *Client) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("category", c.category)
	q.Set("symbol", symbol)

	var res tickers
	if err := c.getJSON(ctx, "tickers", "/v5/market/tickers", q, false, &res); err != nil {
		return decimal.Zero, err
	}
	for _, t := range res.List {
		if t.Symbol != symbol {
			continue
		}
		px, err := parseDecimal(t.LastPrice)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "ticker %s lastPrice", symbol)
		}
		if !px.IsPositive() {
			return decimal.Zero, errors.Errorf("ticker %s: lastPrice <= 0 (%q)", symbol, t.LastPrice)
		}
		return px, nil
	}
	return decimal.Zero, errors.Errorf("ticker %s not found", symbol)
}

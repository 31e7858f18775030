package service

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const settleCoin = "USDT"

// AccountBalance — equity USDT на UNIFIED-аккаунте.
func (c *Client) AccountBalance(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("accountType", "UNIFIED")
	q.Set("coin", settleCoin)

	var res walletBalance
	if err := c.getJSON(ctx, "wallet_balance", "/v5/account/wallet-balance", q, true, &res); err != nil {
		return decimal.Zero, err
	}

	for _, acc := range res.List {
		for _, coin := range acc.Coin {
			if coin.Coin != settleCoin {
				continue
			}
			raw := coin.Equity
			if raw == "" {
				raw = coin.WalletBalance
			}
			v, err := parseDecimal(raw)
			if err != nil {
				return decimal.Zero, errors.Wrapf(err, "wallet balance %q", raw)
			}
			return v, nil
		}
	}
	return decimal.Zero, errors.Errorf("wallet balance: no %s in response", settleCoin)
}

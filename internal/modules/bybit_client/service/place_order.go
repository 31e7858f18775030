package service

import (
	"context"
	"webhook_bot/internal/models"

	"github.com/pkg/errors"
)

// PlaceMarketOrder — POST /v5/order/create, one-way режим (positionIdx=0).
// Стоп прикрепляется к позиции сразу с ордером.
func (c *Client) PlaceMarketOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	if !req.Quantity.IsPositive() {
		return models.OrderResult{}, errors.Errorf("place order %s: qty <= 0", req.Symbol)
	}

	body := createOrderRequest{
		Category:    c.category,
		Symbol:      req.Symbol,
		Side:        string(req.Side),
		OrderType:   "Market",
		Qty:         req.Quantity.String(),
		TimeInForce: string(req.TimeInForce),
		ReduceOnly:  req.ReduceOnly,
		OrderLinkID: req.ClientOrderID,
	}
	if req.StopLoss.IsPositive() {
		body.StopLoss = req.StopLoss.String()
		body.SlTriggerBy = "LastPrice"
	}

	var res createOrderResult
	if err := c.postJSON(ctx, "order_create", "/v5/order/create", body, &res); err != nil {
		return models.OrderResult{}, err
	}
	if res.OrderID == "" {
		return models.OrderResult{}, errors.Errorf("place order %s: empty orderId", req.Symbol)
	}
	return models.OrderResult{OrderID: res.OrderID, ClientOrderID: res.OrderLinkID}, nil
}

package models

import "github.com/shopspring/decimal"

type TimeInForce string

const (
	GoodTillCancel    TimeInForce = "GTC"
	ImmediateOrCancel TimeInForce = "IOC"
)

// OrderRequest — рыночный ордер. StopLoss нулевой — без стопа.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	StopLoss      decimal.Decimal
	ReduceOnly    bool
	TimeInForce   TimeInForce
	ClientOrderID string
}

type OrderResult struct {
	OrderID       string
	ClientOrderID string
}

package service

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoCredentials — подписанный запрос без ключей.
var ErrNoCredentials = errors.New("bybit: api credentials are not set")

// Коды retCode, которые означают лимит запросов.
const (
	retCodeRateLimit  = 10006
	retCodeIPLimit    = 10018
	retCodeNotChanged = 34040 // "not modified": стоп уже стоит там же
)

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

// APIError — Bybit вернул retCode != 0.
type APIError struct {
	Op      string
	RetCode int
	RetMsg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit %s: retCode=%d retMsg=%s", e.Op, e.RetCode, e.RetMsg)
}

func (e *APIError) RateLimited() bool {
	return e.RetCode == retCodeRateLimit || e.RetCode == retCodeIPLimit
}

type HTTPError struct {
	Op     string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("bybit %s: http %d: %s", e.Op, e.Status, e.Body)
}

type positionList struct {
	Category string `json:"category"`
	List     []struct {
		Symbol      string `json:"symbol"`
		Side        string `json:"side"` // Buy | Sell | "" (flat)
		Size        string `json:"size"`
		AvgPrice    string `json:"avgPrice"`
		StopLoss    string `json:"stopLoss"`
		TakeProfit  string `json:"takeProfit"`
		PositionIdx int    `json:"positionIdx"`
		MarkPrice   string `json:"markPrice"`
	} `json:"list"`
}

type walletBalance struct {
	List []struct {
		AccountType           string `json:"accountType"`
		TotalEquity           string `json:"totalEquity"`
		TotalAvailableBalance string `json:"totalAvailableBalance"`
		Coin                  []struct {
			Coin          string `json:"coin"`
			Equity        string `json:"equity"`
			WalletBalance string `json:"walletBalance"`
		} `json:"coin"`
	} `json:"list"`
}

type tickers struct {
	Category string `json:"category"`
	List     []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
		MarkPrice string `json:"markPrice"`
	} `json:"list"`
}

type createOrderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	TimeInForce string `json:"timeInForce,omitempty"`
	ReduceOnly  bool   `json:"reduceOnly"`
	StopLoss    string `json:"stopLoss,omitempty"`
	SlTriggerBy string `json:"slTriggerBy,omitempty"`
	OrderLinkID string `json:"orderLinkId,omitempty"`
	PositionIdx int    `json:"positionIdx"`
}

type createOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

type tradingStopRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	StopLoss    string `json:"stopLoss"`
	TpslMode    string `json:"tpslMode"`
	SlTriggerBy string `json:"slTriggerBy"`
	PositionIdx int    `json:"positionIdx"`
}

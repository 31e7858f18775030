package service

import (
	"strings"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

const tickersTopic = "tickers."

type opRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

// frame — и ответы на op (subscribe/pong), и данные топика.
type frame struct {
	Op      string `json:"op"`
	Success *bool  `json:"success"`
	RetMsg  string `json:"ret_msg"`

	Topic string `json:"topic"`
	Type  string `json:"type"` // snapshot | delta
	Data  struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"data"`
}

func topicFor(symbol string) string { return tickersTopic + symbol }

func subscribeMsg(symbols ...string) ([]byte, error) {
	args := make([]string, 0, len(symbols))
	for _, s := range symbols {
		args = append(args, topicFor(s))
	}
	return sonic.Marshal(opRequest{Op: "subscribe", Args: args})
}

// parseTicker: ok=false для служебных кадров и delta без lastPrice.
func parseTicker(msg []byte) (symbol string, price decimal.Decimal, ok bool, err error) {
	var f frame
	if err := sonic.Unmarshal(msg, &f); err != nil {
		return "", decimal.Zero, false, err
	}
	if !strings.HasPrefix(f.Topic, tickersTopic) || f.Data.LastPrice == "" {
		return "", decimal.Zero, false, nil
	}
	symbol = f.Data.Symbol
	if symbol == "" {
		symbol = strings.TrimPrefix(f.Topic, tickersTopic)
	}
	price, err = decimal.NewFromString(f.Data.LastPrice)
	if err != nil {
		return "", decimal.Zero, false, err
	}
	if !price.IsPositive() {
		return "", decimal.Zero, false, nil
	}
	return symbol, price, true, nil
}

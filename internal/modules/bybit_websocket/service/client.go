package service

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const DefaultURL = "wss://stream.bybit.com/v5/public/linear"

// PriceSource — запасной источник цены (REST).
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// StatusSink — куда сообщаем, живо ли соединение (health).
type StatusSink interface {
	SetWSConnected(v bool)
}

type nopSink struct{}

func (nopSink) SetWSConnected(bool) {}

type quote struct {
	price decimal.Decimal
	at    time.Time
}

// Client держит последние цены из публичного потока tickers.<SYMBOL>.
// Цена старше maxAge не используется, идём в REST.
type Client struct {
	url      string
	dialer   *websocket.Dialer
	fallback PriceSource
	status   StatusSink
	maxAge   time.Duration
	pingEach time.Duration

	mu      sync.RWMutex
	quotes  map[string]quote
	watched map[string]struct{}

	subCh chan string
	now   func() time.Time
}

func NewClient(url string, fallback PriceSource, status StatusSink, maxAge time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if status == nil {
		status = nopSink{}
	}
	if maxAge <= 0 {
		maxAge = 5 * time.Second
	}
	return &Client{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		fallback: fallback,
		status:   status,
		maxAge:   maxAge,
		pingEach: 20 * time.Second,
		quotes:   make(map[string]quote),
		watched:  make(map[string]struct{}),
		subCh:    make(chan string, 64),
		now:      time.Now,
	}
}

// LastPrice: свежая цена из потока, иначе REST. Символ заодно ставится в подписку.
func (c *Client) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	c.Watch(symbol)

	c.mu.RLock()
	q, ok := c.quotes[symbol]
	c.mu.RUnlock()
	if ok && c.now().Sub(q.at) <= c.maxAge {
		return q.price, nil
	}
	return c.fallback.LastPrice(ctx, symbol)
}

// Watch добавляет символ в подписку. Повторный вызов ничего не делает.
func (c *Client) Watch(symbol string) {
	c.mu.Lock()
	if _, ok := c.watched[symbol]; ok {
		c.mu.Unlock()
		return
	}
	c.watched[symbol] = struct{}{}
	c.mu.Unlock()

	select {
	case c.subCh <- symbol:
	default:
		// очередь полна: символ подпишется при следующем переподключении
	}
}

func (c *Client) watchList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.watched))
	for s := range c.watched {
		out = append(out, s)
	}
	return out
}

func (c *Client) store(symbol string, price decimal.Decimal) {
	c.mu.Lock()
	c.quotes[symbol] = quote{price: price, at: c.now()}
	c.mu.Unlock()
}

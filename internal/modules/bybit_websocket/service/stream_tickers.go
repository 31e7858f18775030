package service

import (
	"context"
	"time"
	"webhook_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Run держит соединение до отмены ctx, переподключается с экспоненциальной паузой.
func (c *Client) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	for {
		connected, err := c.session(ctx)
		c.status.SetWSConnected(false)
		if ctx.Err() != nil {
			return
		}
		if connected {
			b.Reset()
		}
		wait := b.NextBackOff()
		logger.Warn("[WS] bybit tickers: %v, reconnect in %s", err, wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// session — одно соединение: подписка, писатель (ping + новые символы), чтение.
func (c *Client) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if syms := c.watchList(); len(syms) > 0 {
		msg, err := subscribeMsg(syms...)
		if err != nil {
			return false, err
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return false, err
		}
	}
	c.status.SetWSConnected(true)
	logger.Info("[WS] bybit tickers connected, %d symbols", len(c.watchList()))

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writer(sctx, conn)
	// ReadMessage не смотрит на ctx, закрываем соединение сами
	go func() {
		<-sctx.Done()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		symbol, price, ok, err := parseTicker(msg)
		if err != nil {
			logger.Debug("[WS] bad frame: %v", err)
			continue
		}
		if ok {
			c.store(symbol, price)
		}
	}
}

// writer — единственный, кто пишет в conn: gorilla не разрешает параллельную запись.
func (c *Client) writer(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(c.pingEach)
	defer t.Stop()

	ping, _ := sonic.Marshal(opRequest{Op: "ping"})
	for {
		var msg []byte
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			msg = ping
		case symbol := <-c.subCh:
			var err error
			if msg, err = subscribeMsg(symbol); err != nil {
				continue
			}
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			_ = conn.Close()
			return
		}
	}
}

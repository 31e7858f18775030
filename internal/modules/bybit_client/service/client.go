package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"webhook_bot/pkg/logger"
	"webhook_bot/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL    = "https://api.bybit.com"
	defaultRecvWindow = 5000
	// на чтение максимум 3 попытки
	readAttempts = 3
)

type Options struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Category   string
	RecvWindow int
	Timeout    time.Duration
}

// Client — Bybit v5 REST, подписанные и публичные запросы.
type Client struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	category   string
	recvWindow string

	now     func() time.Time
	backoff func() backoff.BackOff
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Category == "" {
		opts.Category = "linear"
	}
	if opts.RecvWindow <= 0 {
		opts.RecvWindow = defaultRecvWindow
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		http:       &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		apiSecret:  opts.APISecret,
		category:   opts.Category,
		recvWindow: strconv.Itoa(opts.RecvWindow),
		now:        time.Now,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return backoff.WithMaxRetries(b, readAttempts-1)
		},
	}
}

// sign: hex(HMAC_SHA256(secret, ts + apiKey + recvWindow + payload)),
// payload — query string для GET и тело для POST.
func (c *Client) sign(ts, payload string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(ts + c.apiKey + c.recvWindow + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// getJSON — GET с ретраями. Ретраим только транспорт и 5xx/лимиты.
func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, signed bool, out any) error {
	b := backoff.WithContext(c.backoff(), ctx)
	return backoff.RetryNotify(
		func() error {
			err := c.do(ctx, op, http.MethodGet, path, q.Encode(), nil, signed, out)
			if err != nil && !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		b,
		func(err error, wait time.Duration) {
			logger.Warn("[BYBIT] %s retry in %s: %v", op, wait, err)
		},
	)
}

// postJSON — без ретраев: ордер и стоп повторять нельзя.
func (c *Client) postJSON(ctx context.Context, op, path string, body any, out any) error {
	payload, err := sonic.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "%s marshal", op)
	}
	return c.do(ctx, op, http.MethodPost, path, "", payload, true, out)
}

func (c *Client) do(
	ctx context.Context,
	op, method, path, query string,
	body []byte,
	signed bool,
	out any,
) (err error) {
	span, ctx := tracing.StartSpan(ctx, "bybit."+op)
	span.SetTag("http.method", method)
	span.SetTag("http.path", path)
	defer func() { tracing.Finish(span, err) }()

	endpoint := c.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return errors.Wrapf(err, "%s new request", op)
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		if c.apiKey == "" || c.apiSecret == "" {
			return errors.Wrap(ErrNoCredentials, op)
		}
		ts := strconv.FormatInt(c.now().UnixMilli(), 10)
		payload := query
		if method == http.MethodPost {
			payload = string(body)
		}
		req.Header.Set("X-BAPI-API-KEY", c.apiKey)
		req.Header.Set("X-BAPI-TIMESTAMP", ts)
		req.Header.Set("X-BAPI-RECV-WINDOW", c.recvWindow)
		req.Header.Set("X-BAPI-SIGN", c.sign(ts, payload))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s do", op)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "%s read body", op)
	}
	if resp.StatusCode/100 != 2 {
		return &HTTPError{Op: op, Status: resp.StatusCode, Body: string(data)}
	}

	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return errors.Wrapf(err, "%s decode; body=%s", op, string(data))
	}
	if env.RetCode != 0 {
		return &APIError{Op: op, RetCode: env.RetCode, RetMsg: env.RetMsg}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(env.Result, out); err != nil {
		return errors.Wrapf(err, "%s decode result", op)
	}
	return nil
}

func retryable(err error) bool {
	var api *APIError
	if errors.As(err, &api) {
		return api.RateLimited()
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status >= 500 || he.Status == http.StatusTooManyRequests
	}
	if errors.Is(err, ErrNoCredentials) || errors.Is(err, context.Canceled) {
		return false
	}
	// сеть, таймаут одной попытки
	return true
}

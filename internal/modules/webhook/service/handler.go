package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"webhook_bot/internal/models"
	"webhook_bot/internal/runner"
	"webhook_bot/pkg/logger"
	"webhook_bot/pkg/tracing"

	"github.com/bytedance/sonic"
)

const (
	MaxBodyBytes = 1 << 20
	ServiceName  = "tv-bybit-webhook"
	SecretHeader = "X-Webhook-Secret"
)

type AlertExecutor interface {
	Handle(ctx context.Context, p models.AlertPayload) (runner.Result, error)
}

// Handler — вход для алертов TradingView.
type Handler struct {
	exec   AlertExecutor
	secret string
}

func NewHandler(exec AlertExecutor, secret string) *Handler {
	return &Handler{exec: exec, secret: secret}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Alive)
	mux.HandleFunc("POST /webhook", h.Webhook)
}

func (h *Handler) Alive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive", "service": ServiceName})
}

type errorBody struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Field  string `json:"field,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var err error
	span, ctx := tracing.StartSpan(r.Context(), "webhook.alert")
	defer func() { tracing.Finish(span, err) }()

	// заголовок проверяем до чтения тела
	headerOK := false
	if h.secret != "" {
		if hdr := r.Header.Get(SecretHeader); hdr != "" {
			if !h.matches(hdr) {
				err = errors.New("bad webhook secret")
				writeUnauthorized(w)
				return
			}
			headerOK = true
		}
	}
	authorized := h.secret == "" || headerOK

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		if !authorized {
			writeUnauthorized(w)
			return
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Status: "error", Reason: "body_too_large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Status: "error", Reason: runner.ReasonMalformedJSON, Error: err.Error()})
		return
	}

	var p models.AlertPayload
	if err = sonic.Unmarshal(data, &p); err != nil {
		if !authorized {
			// без секрета не рассказываем, что не так с телом
			writeUnauthorized(w)
			return
		}
		logger.Warn("[WEBHOOK] malformed json: %v", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Status: "error", Reason: runner.ReasonMalformedJSON})
		return
	}

	if !authorized && !h.matches(p.Passphrase) {
		err = errors.New("bad webhook secret")
		writeUnauthorized(w)
		return
	}

	res, err := h.exec.Handle(ctx, p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	span.SetTag("alert.status", res.Status)
	span.SetTag("alert.reason", res.Reason)
	span.SetTag("alert.symbol", res.Symbol)

	logger.Info("[WEBHOOK] %s %s %s", res.Symbol, res.Status, res.Reason)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		ve  *runner.ValidationError
		ven *runner.VenueError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Status: "error", Reason: ve.Reason, Field: ve.Field, Error: ve.Detail})
	case errors.As(err, &ven):
		logger.Error("[WEBHOOK] venue %s: %v", ven.Op, ven.Err)
		writeJSON(w, http.StatusBadGateway, errorBody{Status: "error", Reason: runner.ReasonVenueError, Error: err.Error()})
	default:
		logger.Error("[WEBHOOK] unexpected: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Status: "error", Reason: "internal", Error: err.Error()})
	}
}

func (h *Handler) matches(got string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Status: "error", Reason: "unauthorized"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

package webhook

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
	"webhook_bot/internal/modules/config"
	"webhook_bot/internal/modules/webhook/service"
	"webhook_bot/internal/runner"
	"webhook_bot/pkg/logger"

	"go.uber.org/fx"
)

type Config struct {
	Addr   string // например ":8000"
	Secret string
}

func NewConfig(cfg *config.Config) Config {
	return Config{
		Addr:   fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.PublicPort),
		Secret: cfg.Webhook.Secret,
	}
}

func NewHandler(cfg Config, exec *runner.Executor) *service.Handler {
	return service.NewHandler(exec, cfg.Secret)
}

func RunHTTP(lc fx.Lifecycle, cfg Config, h *service.Handler) {
	mux := http.NewServeMux()
	h.Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// вход + баланс + ордер, каждый со своим таймаутом
		WriteTimeout: 60 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			logger.Info("[WEBHOOK] listening on %s", cfg.Addr)
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("[WEBHOOK] serve: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("webhook",
		fx.Provide(
			NewConfig,
			NewHandler,
		),
		fx.Invoke(RunHTTP),
	)
}

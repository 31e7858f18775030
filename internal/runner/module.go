package runner

import (
	"context"
	"sync"
	"time"
	"webhook_bot/internal/modules/config"
	"webhook_bot/internal/runner/dedup"
	"webhook_bot/internal/runner/positions"
	"webhook_bot/internal/runner/sizing"
	"webhook_bot/pkg/logger"
	"webhook_bot/pkg/metrics"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewPositionStore,    // *positions.Store
			NewFingerprintCache, // *dedup.Cache
			NewEntryExecutor,    // *Executor
			NewPositionMonitor,  // *Monitor
		),
		fx.Invoke(runBackground),
	)
}

func NewPositionStore(venue Venue) *positions.Store {
	return positions.NewStore(venue)
}

func NewFingerprintCache(cfg *config.Config) *dedup.Cache {
	return dedup.New(cfg.Cooldown(), cfg.Retention())
}

func NewEntryExecutor(
	cfg *config.Config,
	venue Venue,
	store *positions.Store,
	cache *dedup.Cache,
	notify Notifier,
	m *metrics.Metrics,
) *Executor {
	return NewExecutor(ExecutorConfig{
		RiskPct:      cfg.Trading.RiskPct,
		QuoteSuffix:  cfg.Trading.QuoteSuffix,
		VenueTimeout: cfg.VenueTimeout(),
	}, venue, store, cache, sizing.New(cfg.Trading.QtyPrecision), notify, m)
}

func NewPositionMonitor(
	cfg *config.Config,
	venue Venue,
	prices PriceSource,
	store *positions.Store,
	notify Notifier,
	m *metrics.Metrics,
	obs CycleObserver,
) *Monitor {
	return NewMonitor(MonitorConfig{
		PollInterval:      cfg.PollInterval(),
		Jitter:            cfg.Jitter(),
		ReconcileInterval: cfg.ReconcileInterval(),
		ReconcileGrace:    cfg.ReconcileInterval(),
		VenueTimeout:      cfg.VenueTimeout(),
		CloseRatio:        cfg.Trading.TP1CloseRatio,
		QtyPrecision:      cfg.Trading.QtyPrecision,
	}, venue, prices, store, notify, m, obs)
}

// runBackground: монитор и чистильщик отпечатков живут от OnStart до OnStop.
func runBackground(
	lc fx.Lifecycle,
	cfg *config.Config,
	mon *Monitor,
	cache *dedup.Cache,
	m *metrics.Metrics,
	obs CycleObserver,
) {
	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			wg.Add(2)
			go func() {
				defer wg.Done()
				mon.Run(ctx)
			}()
			go func() {
				defer wg.Done()
				cache.RunJanitor(ctx, cfg.EvictInterval(), func(evicted, left int) {
					m.Fingerprints.Set(float64(left))
					if evicted > 0 {
						logger.Debug("[DEDUP] evicted %d fingerprints, %d left", evicted, left)
					}
				})
			}()

			obs.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			obs.SetReady(false)
			if cancel != nil {
				cancel()
			}

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				logger.Warn("[RUNNER] background workers did not stop in time")
			case <-time.After(10 * time.Second):
			}
			return nil
		},
	})
}

package paper_broker

import (
	"webhook_bot/internal/modules/bybit_websocket/service"
	"webhook_bot/internal/modules/config"
	paper "webhook_bot/internal/modules/paper_broker/service"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

// NewBroker: бумажная биржа исполняет по ценам публичного потока Bybit.
func NewBroker(cfg *config.Config, prices *service.Client) *paper.Broker {
	return paper.NewBroker(prices, decimal.NewFromFloat(cfg.Venue.PaperBalance))
}

func Module() fx.Option {
	return fx.Module("paper_broker",
		fx.Provide(
			NewBroker, // *paper.Broker
		),
	)
}

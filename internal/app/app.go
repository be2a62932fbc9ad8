// Package app wires the checkout gateway, its HTTP surface, and the
// client-side workflow together.
package app

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/my3rdstory/satoshop-sub001/internal/client"
	"github.com/my3rdstory/satoshop-sub001/internal/config"
	"github.com/my3rdstory/satoshop-sub001/internal/flow"
	"github.com/my3rdstory/satoshop-sub001/internal/gateway"
)

// App bundles the gateway server side and a factory for client-side
// orchestrators bound to it.
type App struct {
	Gateway *gateway.Gateway
	Handler http.Handler

	cfg config.Config
	log *zap.Logger
}

// New builds the application from configuration.
func New(cfg config.Config, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}

	gw := gateway.New(gateway.Config{
		InvoiceTTL: cfg.InvoiceTTL,
		Stock:      cfg.Stock,
	}, nil, log.Named("gateway"))

	h := gateway.NewHandler(gw, log.Named("http"))

	return &App{
		Gateway: gw,
		Handler: gateway.Logging(log.Named("http"), h.Routes()),
		cfg:     cfg,
		log:     log,
	}
}

// NewOrchestrator builds a checkout orchestrator talking to baseURL
// and rendering on ui.
func (a *App) NewOrchestrator(baseURL, csrfToken string, ui flow.UI) *flow.Orchestrator {
	api := client.New(baseURL, csrfToken, nil, a.log.Named("client"))
	return flow.New(api, ui, nil, a.log.Named("flow"), flow.Config{
		PollInterval:    a.cfg.PollInterval,
		MaxPollFailures: a.cfg.MaxPollFailures,
		SettleDelay:     a.cfg.SettleDelay,
		ReloadDelay:     a.cfg.ReloadDelay,
	}, nil)
}

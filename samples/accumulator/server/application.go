package main

import (
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-ledger-go/accumulator"
	"github.com/weegigs/wee-ledger-go/connectors/wehttp"
	"github.com/weegigs/wee-ledger-go/support"
	"github.com/weegigs/wee-ledger-go/we"
)

type Application struct {
	Service       accumulator.Service
	Module        *accumulator.Module
	Registry      *prometheus.Registry
	Authenticator *wehttp.JWTAuthenticator
}

func NewApplication(service accumulator.Service, module *accumulator.Module, registry *prometheus.Registry, authenticator *wehttp.JWTAuthenticator) *Application {
	return &Application{
		Service:       service,
		Module:        module,
		Registry:      registry,
		Authenticator: authenticator,
	}
}

func ProvideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

func ProvideMetrics(registry *prometheus.Registry) *we.Metrics {
	return we.NewMetrics(registry)
}

func ProvideService(store we.EventStore, notifier we.Notifier, metrics *we.Metrics) accumulator.Service {
	return accumulator.NewService(store, notifier, we.WithMetrics(metrics), we.WithRetryDelay(5*time.Millisecond))
}

// ProvideAuthenticator is nil when no secret is configured, in which case
// every command is rejected as unsigned.
func ProvideAuthenticator(cfg support.Config) *wehttp.JWTAuthenticator {
	if cfg.JWTSecret == "" {
		return nil
	}

	return wehttp.NewJWTAuthenticator([]byte(cfg.JWTSecret))
}

var Providers = wire.NewSet(
	ProvideBackend,
	ProvideStore,
	ProvideNotifier,
	ProvideRegistry,
	ProvideMetrics,
	ProvideService,
	ProvideAuthenticator,
	accumulator.NewModule,
	NewApplication,
)

func (app *Application) Handler() http.Handler {
	options := []wehttp.HandlerOption[accumulator.Accumulation]{
		wehttp.DefaultState[accumulator.Accumulation](),
		wehttp.Logger[accumulator.Accumulation](&log.Logger),
	}
	if app.Authenticator != nil {
		options = append(options, wehttp.Authenticated[accumulator.Accumulation](app.Authenticator))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/", wehttp.NewHandler[accumulator.Accumulation](app.Service, options...))

	return wehttp.WithTelemetry(withLogging(mux), "wee-ledger")
}

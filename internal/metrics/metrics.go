// Package metrics exposes prometheus counters for the trading loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PriceSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ewmabot_price_samples_total", Help: "Price samples ingested"},
		[]string{"symbol"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ewmabot_orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side"},
	)
	OrderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ewmabot_order_failures_total", Help: "Order attempts that did not reach the broker or were rejected"},
		[]string{"symbol", "reason"},
	)
	DataFetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ewmabot_data_fetch_failures_total", Help: "Failed latest-price fetches"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(PriceSamplesTotal, OrdersTotal, OrderFailuresTotal, DataFetchFailuresTotal)
}

// Serve starts the /metrics endpoint on addr. The returned server can be shut
// down by the caller; listen errors are ignored the way a best-effort
// sidecar endpoint should be.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// Package server wires HTTP handlers into a ServeMux for the relay
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tarun2000/yapper-BE/internal/metrics"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// /metrics is only mounted when gatherer is non-nil.
func SetupRoutes(hub *Hub, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	mux.HandleFunc("/test", TestPageHandler)
	if gatherer != nil {
		mux.Handle("/metrics", metrics.Handler(gatherer))
	}
	return mux
}

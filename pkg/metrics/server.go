package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yxiaowhut/streamit/internal/logger"
)

// NewServer returns an HTTP server exposing the registry at /metrics.
// It returns nil when metrics are disabled.
func NewServer(port int) *http.Server {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve runs srv in the background, logging anything but a clean shutdown.
func Serve(srv *http.Server) {
	if srv == nil {
		return
	}
	go func() {
		logger.Info("Metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
}

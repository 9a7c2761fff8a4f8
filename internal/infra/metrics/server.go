package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// StartMetricsServer serves /metrics and /healthz in the background. A zero
// port disables the server and returns nil.
func StartMetricsServer(ctx context.Context, port int, logger *zap.Logger) *http.Server {
	if port == 0 {
		return nil
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: NewHandler(),
	}

	go func() {
		logger.Info("metrics server starting", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	return srv
}

// Shutdown stops a server returned by StartMetricsServer. It accepts nil.
func Shutdown(ctx context.Context, srv *http.Server) error {
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

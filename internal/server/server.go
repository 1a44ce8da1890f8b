package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sublink/internal/builder"
	"sublink/internal/config"
	"sublink/internal/logger"
	"sublink/internal/metrics"
	"sublink/internal/store"
)

// Server serves converted configs, base config uploads and short links.
type Server struct {
	cfg     *config.Config
	store   store.Store
	regions builder.RegionLookup
	handler http.Handler
}

// New wires every route. regions may be nil.
func New(cfg *config.Config, st store.Store, regions builder.RegionLookup) *Server {
	s := &Server{cfg: cfg, store: st, regions: regions}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	if cfg.Server.Metrics {
		metrics.MustRegister()
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	for _, t := range builder.Targets() {
		mux.HandleFunc("GET /"+string(t), s.handleConvert(t))
	}
	mux.HandleFunc("POST /config", s.handleSaveConfig)
	mux.HandleFunc("GET /shorten", s.handleShorten)
	mux.HandleFunc("GET /shorten-v2", s.handleShortenV2)
	mux.HandleFunc("GET /resolve", s.handleResolve)
	for prefix := range shortPrefixes {
		mux.HandleFunc("GET /"+prefix+"/{code}", s.handleRedirect(prefix))
	}

	s.handler = accessLog(mux)
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe runs until ctx is cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Listen,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("🌐 Listening on %s", s.cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Log.Info("🛑 Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/satsbot/core/logger"
)

// Server exposes /metrics and /healthz.
type Server struct {
	srv *http.Server
}

// Router builds the HTTP handler served by Server.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// NewServer prepares a server listening on addr. It does not start listening.
func NewServer(addr string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           Router(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	logger.Info(context.Background(), "metrics", "listen",
		slog.String("status", "ok"),
		slog.String("listen", ln.Addr().String()),
	)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "metrics", "serve",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

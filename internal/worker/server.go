package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/enneadtab/revit-worker/pkg/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the worker's status endpoints: current job state, run
// history and metrics. It never accepts work, jobs arrive through the file
// contract only.
type Server struct {
	port       int
	worker     *Worker
	restServer *http.Server
}

func NewServer(port int, worker *Worker) *Server {
	return &Server{
		port:   port,
		worker: worker,
	}
}

func (s *Server) Start() {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(log.Logger(zap.L(), "server"))

	router.Handle("/metrics", promhttp.Handler())
	RegisterApi(router, s.worker)

	s.restServer = &http.Server{Addr: fmt.Sprintf("0.0.0.0:%d", s.port), Handler: router}

	err := s.restServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		zap.S().Named("server").Fatalf("failed to start server: %s", err)
	}
}

func (s *Server) Stop(stopCh chan any) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	doneCh := make(chan any)

	go func() {
		err := s.restServer.Shutdown(shutdownCtx)
		if err != nil {
			zap.S().Named("server").Errorf("failed to graceful shutdown the server: %s", err)
		}
		close(doneCh)
	}()

	<-doneCh

	close(stopCh)
}

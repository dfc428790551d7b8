package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/streamhive/media-orchestrator/internal/config"
	"github.com/streamhive/media-orchestrator/internal/handlers"
	"github.com/streamhive/media-orchestrator/internal/jobs"
	"github.com/streamhive/media-orchestrator/internal/service"
	"github.com/streamhive/media-orchestrator/pkg/log"
	"github.com/streamhive/media-orchestrator/pkg/metrics"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

// RunnerServer exposes the lifecycle operations to runners and the job read
// API to operators.
type RunnerServer struct {
	cfg        *config.Config
	controller *jobs.Controller
	jobSrv     *service.JobService
	listener   net.Listener
}

func New(
	cfg *config.Config,
	controller *jobs.Controller,
	jobSrv *service.JobService,
	listener net.Listener,
) *RunnerServer {
	return &RunnerServer{
		cfg:        cfg,
		controller: controller,
		jobSrv:     jobSrv,
		listener:   listener,
	}
}

func (s *RunnerServer) Run(ctx context.Context) error {
	zap.S().Named("runner_server").Info("Initializing runner API server")

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("runner_server")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		log.Logger(zap.L(), "router_runner"),
		middleware.RequestID,
		middleware.Recoverer,
	)

	h := handlers.NewJobHandlerLogger(handlers.NewJobHandler(s.controller, s.jobSrv))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs", h.ListJobs)
		r.Post("/jobs", h.CreateJob)
		r.Get("/jobs/{uuid}", h.GetJob)
		r.Post("/jobs/{uuid}/cancel", h.CancelJob)

		r.Route("/runners/jobs/{uuid}", func(r chi.Router) {
			r.Post("/update", h.UpdateJob)
			r.Post("/success", h.CompleteJob)
			r.Post("/error", h.ErrorJob)
			r.Post("/abort", h.AbortJob)
		})
	})

	srv := http.Server{Addr: s.cfg.Service.RunnerAddress, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("runner_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
	}()

	zap.S().Named("runner_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}

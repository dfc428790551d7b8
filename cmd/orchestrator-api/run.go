package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	apiserver "github.com/streamhive/media-orchestrator/internal/api_server"
	"github.com/streamhive/media-orchestrator/internal/config"
	"github.com/streamhive/media-orchestrator/internal/events"
	"github.com/streamhive/media-orchestrator/internal/fileio"
	"github.com/streamhive/media-orchestrator/internal/jobs"
	"github.com/streamhive/media-orchestrator/internal/live"
	"github.com/streamhive/media-orchestrator/internal/service"
	"github.com/streamhive/media-orchestrator/internal/store"
	"github.com/streamhive/media-orchestrator/internal/video"
	"github.com/streamhive/media-orchestrator/pkg/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			zap.S().Fatalw("reading configuration", "error", err)
		}

		logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
		if err != nil {
			logLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}

		logger := log.InitLog(logLvl)
		defer func() { _ = logger.Sync() }()

		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting orchestrator API service")
		defer zap.S().Info("Orchestrator API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		st := store.NewStore(db)
		defer st.Close()

		if err := st.InitialMigration(); err != nil {
			zap.S().Fatalw("running initial migration", "error", err)
		}

		notifier := events.NewRunnerNotifier(newEventProducer(cfg))
		defer notifier.Close()

		mover := fileio.NewDiskMover()
		mover.SetRootdir(cfg.Service.StorageDir)

		registry, err := jobs.NewDefaultRegistry(video.NewManager(st), live.NewManager(st), mover)
		if err != nil {
			zap.S().Fatalw("building job type registry", "error", err)
		}

		controller := jobs.NewController(st, notifier, registry, jobs.ControllerOptions{
			MaxFailures:   cfg.Service.Jobs.MaxFailures,
			TouchInterval: cfg.Service.Jobs.TouchInterval,
			CascadeLimit:  cfg.Service.Jobs.CascadeLimit,
		})

		jobSrv := service.NewJobService(st, controller)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.RunnerAddress)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			server := apiserver.New(cfg, controller, jobSrv, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("running runner server", "error", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalw("creating metrics listener", "error", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalw("running metrics server", "error", err)
			}
		}()

		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := jobSrv.RefreshPendingJobsMetric(ctx); err != nil {
						zap.S().Errorw("refreshing pending jobs metric", "error", err)
					}
				}
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func newEventProducer(cfg *config.Config) *events.EventProducer {
	opts := []events.ProducerOptions{}
	if cfg.Service.Kafka.Topic != "" {
		opts = append(opts, events.WithOutputTopic(cfg.Service.Kafka.Topic))
	}

	if len(cfg.Service.Kafka.Brokers) > 0 {
		writer, err := events.NewKafkaWriter(cfg.Service.Kafka.Brokers, cfg.Service.Kafka.ClientID)
		if err == nil {
			return events.NewEventProducer(writer, opts...)
		}
		zap.S().Errorw("failed to create kafka writer, falling back to stdout", "error", err)
	}

	return events.NewEventProducer(&events.StdoutWriter{}, opts...)
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/example/push-dispatcher/internal/app"
	"github.com/example/push-dispatcher/internal/common"
	"github.com/example/push-dispatcher/internal/schedule"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := common.LoadConfig("scheduler", false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := common.NewLogger(cfg.ServiceName)
	shutdown, err := common.SetupOTel(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	defer common.ShutdownTelemetry(context.Background(), shutdown)

	metricsSrv := common.StartMetricsServer(cfg.MetricsPort, logger)
	defer metricsSrv.Shutdown(context.Background())

	pipeline, closePipeline, err := app.BuildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build dispatch pipeline")
	}
	defer closePipeline()

	s, err := schedule.New(pipeline, cfg.Schedule, cfg.ScheduleTimezone, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid schedule")
	}
	if cfg.RunOnce {
		s.Fire(ctx)
		return
	}
	if err := s.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("scheduler failed to start")
	}

	<-ctx.Done()
	s.Stop()
}

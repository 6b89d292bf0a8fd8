package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/internal/bili"
	"github.com/radieske/live-raffle-monitor/internal/monitor"
	"github.com/radieske/live-raffle-monitor/internal/monitor/publisher"
	"github.com/radieske/live-raffle-monitor/internal/shared/config"
	"github.com/radieske/live-raffle-monitor/internal/shared/logger"
	"github.com/radieske/live-raffle-monitor/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("queue destination", zap.String("addr", cfg.QueueAddr))

	// Publisher UDP (fila fire-and-forget para o processor)
	pub, err := publisher.NewUDPPublisher(cfg.QueueAddr, log)
	if err != nil {
		log.Fatal("queue publisher", zap.Error(err))
	}
	defer pub.Close()

	// Client da API da plataforma (descoberta de salas; sem cookie aqui)
	api := bili.NewClient(cfg.APIBaseURL, nil)

	fleet := &monitor.Fleet{
		Log:   log,
		API:   api,
		Codec: bili.NewCodec(),
		Queue: pub,
		WSURL: cfg.DanmakuWSURL,
		Slots: cfg.MonitorSlots,
		Areas: cfg.MonitorAreas,
	}

	// Metrics e health: o monitor é saudável enquanto o processo vive
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return nil
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("room-monitor started",
		zap.Int("slots", cfg.MonitorSlots),
		zap.Int("areas", cfg.MonitorAreas),
	)
	fleet.Run(ctx)
	log.Info("room-monitor stopped")
}

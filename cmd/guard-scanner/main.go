package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/internal/bili"
	"github.com/radieske/live-raffle-monitor/internal/monitor/publisher"
	proccache "github.com/radieske/live-raffle-monitor/internal/processor/cache"
	"github.com/radieske/live-raffle-monitor/internal/scanner"
	sharedcache "github.com/radieske/live-raffle-monitor/internal/shared/cache"
	"github.com/radieske/live-raffle-monitor/internal/shared/config"
	"github.com/radieske/live-raffle-monitor/internal/shared/logger"
)

// Binário de execução única, disparado por cron: varre a lista global de
// guards e injeta na fila as salas com característica nova ou alterada.
func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	pub, err := publisher.NewUDPPublisher(cfg.QueueAddr, log)
	if err != nil {
		log.Fatal("queue publisher", zap.Error(err))
	}
	defer pub.Close()

	dedup := proccache.NewDedup(redisClient)
	state := proccache.NewState(dedup)
	api := bili.NewClient(cfg.APIBaseURL, state)

	s := &scanner.Scanner{
		Log:   log,
		API:   api,
		Cache: dedup,
		Queue: pub,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("guard scan failed", zap.Error(err))
	}
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/internal/bili"
	"github.com/radieske/live-raffle-monitor/internal/processor"
	"github.com/radieske/live-raffle-monitor/internal/processor/broadcast"
	proccache "github.com/radieske/live-raffle-monitor/internal/processor/cache"
	"github.com/radieske/live-raffle-monitor/internal/processor/handler"
	"github.com/radieske/live-raffle-monitor/internal/processor/notify"
	"github.com/radieske/live-raffle-monitor/internal/processor/queue"
	"github.com/radieske/live-raffle-monitor/internal/processor/repository"
	sharedcache "github.com/radieske/live-raffle-monitor/internal/shared/cache"
	"github.com/radieske/live-raffle-monitor/internal/shared/config"
	"github.com/radieske/live-raffle-monitor/internal/shared/db"
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

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	dedup := proccache.NewDedup(redisClient)
	state := proccache.NewState(dedup)
	repo := repository.NewPostgresRepo(pg)
	feed := broadcast.NewRedisBroadcaster(redisClient)
	api := bili.NewClient(cfg.APIBaseURL, state)

	// Fila UDP de entrada (best-effort, sem garantia de entrega)
	srv, err := queue.Listen(cfg.QueueAddr, log)
	if err != nil {
		log.Fatal("queue listen", zap.Error(err))
	}
	defer srv.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_proc_envelopes_consumed_total", Help: "envelopes consumidos da fila"})
	forwarded := prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_proc_envelopes_forwarded_total", Help: "envelopes entregues aos workers"})
	collapsed := prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_proc_envelopes_collapsed_total", Help: "envelopes colapsados por ciclo/sala"})
	handled := prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_proc_events_handled_total", Help: "eventos processados com sucesso"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_proc_datagrams_dropped_total", Help: "datagramas indecodificáveis"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "raffle_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, forwarded, collapsed, handled, dropped, errorsBy)

	srv.OnDropped = func() { dropped.Inc() }

	handlers := &handler.Handlers{
		Log:      log,
		Dedup:    dedup,
		State:    state,
		Repo:     repo,
		Feed:     feed,
		API:      api,
		Notifier: notify.New(cfg.NotifyURL),
	}
	handlers.Init()

	proc := &processor.Processor{
		Log:     log,
		Source:  srv,
		Handler: handlers,
		Workers: cfg.WorkerCount,

		OnConsumed:  func() { consumed.Inc() },
		OnForwarded: func() { forwarded.Inc() },
		OnCollapsed: func() { collapsed.Inc() },
		OnHandled:   func() { handled.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check (Postgres + Redis)
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("raffle-processor started", zap.Int("workers", cfg.WorkerCount))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("raffle-processor stopped")
}

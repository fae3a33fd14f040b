package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"membership/internal/card"
	"membership/internal/config"
	"membership/internal/delivery"
	"membership/internal/logger"
	"membership/internal/mailer"
	"membership/internal/metrics"
	"membership/internal/queue"
	"membership/internal/store"
	"membership/internal/student"
)

// Worker consumes card delivery jobs and emails each student their ID card.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(0).Fatal("Worker: invalid configuration", "error", err)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Fatal("Worker: failed", "error", err)
	}
}

func run(cfg config.App, log *logger.Logger) error {
	if cfg.Queue.Backend == "memory" {
		return errors.New("QUEUE_BACKEND=memory delivers inside the API process, the standalone worker needs redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Warn("Worker: redis not reachable yet, consumer will retry", "addr", cfg.Redis.Addr)
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.Queue.Key, log)
	m := metrics.New(prometheus.DefaultRegisterer)

	spec, err := cfg.Card.QRSpec()
	if err != nil {
		return err
	}
	assets, err := card.LoadAssets()
	if err != nil {
		return err
	}
	mail, err := mailer.New(cfg.SMTP, log)
	if err != nil {
		return err
	}

	renderer := card.NewRenderer(assets, spec, cfg.Card.TempDir, cfg.Card.Scale, log)
	locker := delivery.NewRedisLocker(redisClient.Client, "membership:card-lock:", cfg.Queue.LockTTL, log)
	students := student.NewService(student.NewRepository(db.Client), delivery.NewPublisher(q), log)
	worker := delivery.NewWorker(q, students, delivery.NewService(renderer, mail, locker, log, m), cfg.Queue.Workers, log, m)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.Queue.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Worker: metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return worker.Run(ctx)
}

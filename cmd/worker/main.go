package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/notify"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payments"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	cfg.ServiceName += "-worker"
	log := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// both consumer groups share the pool
	pool := cfg.PoolOptions()
	if n := int32(2 * cfg.WorkerConcurrency); pool.MaxConns < n {
		pool.MaxConns = n
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, pool)
	if err != nil {
		log.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// status changes triggered by payments are published like API ones
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChange, 1024).WithLogger(log)
	pStatus.Start(ctx)
	pub := notify.NewPublisher(nil, pStatus, cfg.ServiceName, log)

	svc := &orders.Service{
		Store:  &orders.Repo{DB: db},
		Ledger: &inventory.Ledger{DB: db},
		Events: pub,
		Cache:  &redisx.StatusCache{Client: rdb},
		Locker: &redisx.Locker{Client: rdb},
		Log:    log,
	}

	confirmations := &notify.ConfirmationHandler{
		Mailer:      notify.LogMailer{Log: log},
		Redis:       rdb,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}
	paymentEvents := payments.NewHandler(svc, log)

	dlq := kafkax.NewDeadLetter(cfg.KafkaBrokers, orders.TopicWorkerDeadLetter)
	defer dlq.Close()

	cConfirm := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup+"-mail", cfg.WorkerConcurrency,
		orders.TopicOrderConfirmation).WithLogger(log).WithDeadLetter(dlq)
	cPayments := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup+"-payments", cfg.WorkerConcurrency,
		orders.TopicPaymentAuthorized, orders.TopicPaymentFailed).WithLogger(log).WithDeadLetter(dlq)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cConfirm.Start(gctx, confirmations.Handle) })
	g.Go(func() error { return cPayments.Start(gctx, paymentEvents.Handle) })

	log.Info("worker started", "group", cfg.WorkerGroup, "workers", cfg.WorkerConcurrency)
	if err := g.Wait(); err != nil {
		log.Error("consumer exit", "error", err)
	}
	log.Info("shutting down worker...")
	pStatus.Close()
	pStatus.WaitClosed()
}

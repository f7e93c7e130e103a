package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/cart"
	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/httpx"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/notify"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := cfg.Logger()
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if cfg.RunMigrations {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			log.Error("migrate", "error", err)
			os.Exit(1)
		}
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PoolOptions())
	if err != nil {
		log.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers: confirmations & status changes
	pConfirm := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderConfirmation, 1024).WithLogger(log)
	pConfirm.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChange, 1024).WithLogger(log)
	pStatus.Start(ctx)
	pub := notify.NewPublisher(pConfirm, pStatus, cfg.ServiceName, log)

	cache := &redisx.StatusCache{Client: rdb}
	svc := &orders.Service{
		Store:        &orders.Repo{DB: db},
		Ledger:       &inventory.Ledger{DB: db},
		Numbers:      orders.NumberGenerator{Tag: cfg.OrderNumberTag},
		Cart:         &cart.Clearer{DB: db, Redis: rdb},
		Notifier:     pub,
		Events:       pub,
		Cache:        cache,
		Locker:       &redisx.Locker{Client: rdb},
		Log:          log,
		PlaceTimeout: cfg.PlaceTimeout,
	}

	router := httpx.NewRouter(cfg.JWTSecret)
	oh := &httpx.OrdersHandler{
		Orders: svc,
		Idem:   &redisx.Idempotency{Client: rdb},
		Cache:  cache,
		Log:    log,
	}
	oh.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pConfirm.Close() // flush inbox & close writer
	pStatus.Close()
	pConfirm.WaitClosed()
	pStatus.WaitClosed()
}

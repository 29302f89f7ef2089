package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront-payments/internal/config"
	"github.com/ariefcatur/go-storefront-payments/internal/gateway"
	"github.com/ariefcatur/go-storefront-payments/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-payments/internal/kafka"
	"github.com/ariefcatur/go-storefront-payments/internal/metrics"
	"github.com/ariefcatur/go-storefront-payments/internal/orders"
	"github.com/ariefcatur/go-storefront-payments/internal/postgres"
	"github.com/ariefcatur/go-storefront-payments/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB: tanpa database server tidak boleh jalan
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	if cfg.GatewayAccessToken == "" {
		log.Println("GATEWAY_ACCESS_TOKEN is empty; checkout and refunds will fail")
	}
	m := metrics.NewRegistry()

	svc := &orders.Service{
		Store:   &postgres.Store{DB: db},
		Gateway: gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAccessToken, m),
		Locker:  &redisx.Locker{RDB: rdb},
		Events:  &kafkax.EventWriter{P: prod},
		CheckoutConfig: orders.CheckoutConfig{
			Currency:       cfg.Currency,
			FrontendURL:    cfg.FrontendURL,
			WebhookBaseURL: cfg.WebhookBaseURL,
		},
		RefundLockTTL: cfg.RefundLockTTL,
		Producer:      cfg.ServiceName,
	}

	router := httpx.NewRouter(m)
	oh := &httpx.OrdersHandler{
		Svc:     svc,
		Idem:    &redisx.Idempotency{RDB: rdb},
		Metrics: m,
	}
	oh.Register(router)
	wh := &httpx.WebhookHandler{
		Svc:             svc,
		Secret:          cfg.WebhookSecret,
		AllowSimulation: !cfg.Production(),
		Metrics:         m,
	}
	wh.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s env=%s simulate=%v", cfg.HTTPAddr, cfg.Environment, wh.AllowSimulation)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}

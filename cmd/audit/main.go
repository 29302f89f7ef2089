package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront-payments/internal/audit"
	"github.com/ariefcatur/go-storefront-payments/internal/config"
	kafkax "github.com/ariefcatur/go-storefront-payments/internal/kafka"
	"github.com/ariefcatur/go-storefront-payments/internal/orders"
	"github.com/ariefcatur/go-storefront-payments/internal/postgres"
	"github.com/ariefcatur/go-storefront-payments/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &audit.Service{
		Log:   &postgres.EventLog{DB: db},
		Dedup: &redisx.Dedup{RDB: rdb, Service: cfg.ServiceName + "-audit"},
	}

	// Consumer: semua topic order
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, orders.Topics, cfg.AuditWorkers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("audit consumer started: group=%s topics=%s workers=%d",
			cfg.AuditGroup, strings.Join(orders.Topics, ","), cfg.AuditWorkers)
		if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("consumer did not stop in time")
	}
}

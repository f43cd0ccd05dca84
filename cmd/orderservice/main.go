package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"paymentsaga/internal/bus"
	"paymentsaga/internal/config"
	"paymentsaga/internal/event"
	"paymentsaga/internal/idempotency"
	"paymentsaga/internal/logging"
	"paymentsaga/internal/order"
	"paymentsaga/internal/outbox"
	"paymentsaga/internal/retrypolicy"
)

func main() {
	log := logging.New("order-service")
	log.Info().Msg("starting order service")

	cfg := config.Load(order.ConsumerGroup)

	// =====================================================
	// 1. Database connection (with retry)
	// =====================================================
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			break
		}
		log.Warn().Int("attempt", i+1).Err(err).Msg("waiting for database")
		if db != nil {
			db.Close()
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to postgres")

	if err := order.NewRepository(db).EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure orders schema")
	}
	if err := idempotency.EnsureSchema(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure processed_events schema")
	}
	if err := outbox.EnsureSchema(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure outbox schema")
	}

	// =====================================================
	// 2. Bus connection (with retry)
	// =====================================================
	b := bus.New(cfg.BusURL, log)
	for i := 0; i < 10; i++ {
		err = b.Connect()
		if err == nil {
			break
		}
		log.Warn().Int("attempt", i+1).Err(err).Msg("waiting for bus")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to bus")
	}
	defer b.Close()
	log.Info().Msg("connected to bus")

	// =====================================================
	// 3. Wiring
	// =====================================================
	repo := order.NewRepository(db)
	idemp := idempotency.NewPostgresStore(db)
	svc := order.NewService(repo, idemp, log)
	handler := order.NewHandler(svc, log)

	outboxPub := outbox.NewPublisher(db, b, log)

	mux := http.NewServeMux()
	handler.Routes(mux)
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := outboxPub.Start(ctx); err != nil {
			log.Error().Err(err).Msg("outbox publisher stopped with error")
		}
	}()

	if err := b.Subscribe(ctx, event.TopicRiskEvents, order.ConsumerGroup, cfg.BusShards,
		retrypolicy.HandlerPolicy(), b.DefaultDLQWriter(), svc.HandleRiskEvent); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to risk-events")
	}
	if err := b.Subscribe(ctx, event.TopicPaymentEvents, order.ConsumerGroup, cfg.BusShards,
		retrypolicy.HandlerPolicy(), b.DefaultDLQWriter(), svc.HandlePaymentEvent); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to payment-events")
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	log.Info().Msg("order service ready")

	// =====================================================
	// 4. Graceful shutdown
	// =====================================================
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	cancel()
	time.Sleep(200 * time.Millisecond) // let shard workers and outbox flush drain
	log.Info().Msg("order service stopped")
}

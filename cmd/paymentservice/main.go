package main

import (
	"context"
	"database/sql"
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
	"paymentsaga/internal/outbox"
	"paymentsaga/internal/payment"
	"paymentsaga/internal/retrypolicy"
)

func main() {
	log := logging.New("payment-service")
	log.Info().Msg("starting payment service")

	cfg := config.Load(payment.ConsumerGroup)

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

	if err := payment.NewRepository(db).EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure payment_transactions schema")
	}
	if err := idempotency.EnsureSchema(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure processed_events schema")
	}
	if err := outbox.EnsureSchema(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure outbox schema")
	}

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

	repo := payment.NewRepository(db)
	idemp := idempotency.NewPostgresStore(db)
	gateway := payment.NewMockGateway()
	svc := payment.NewService(repo, idemp, gateway, log)

	outboxPub := outbox.NewPublisher(db, b, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := outboxPub.Start(ctx); err != nil {
			log.Error().Err(err).Msg("outbox publisher stopped with error")
		}
	}()

	if err := b.Subscribe(ctx, event.TopicPaymentSaga, payment.ConsumerGroup, cfg.BusShards,
		retrypolicy.HandlerPolicy(), b.DefaultDLQWriter(), svc.HandlePaymentInitiated); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to payment-saga")
	}
	if err := b.Subscribe(ctx, event.TopicRiskEvents, payment.ConsumerGroup, cfg.BusShards,
		retrypolicy.HandlerPolicy(), b.DefaultDLQWriter(), svc.HandleRiskEvent); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to risk-events")
	}
	if err := b.Subscribe(ctx, event.TopicSagaCompensation, payment.ConsumerGroup, cfg.BusShards,
		retrypolicy.HandlerPolicy(), b.DefaultDLQWriter(), svc.HandleCompensation); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to saga-compensation")
	}

	log.Info().Msg("payment service ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutting down")

	cancel()
	time.Sleep(200 * time.Millisecond)
	log.Info().Msg("payment service stopped")
}

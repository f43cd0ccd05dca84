package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"paymentsaga/internal/bus"
	"paymentsaga/internal/config"
	"paymentsaga/internal/event"
	"paymentsaga/internal/logging"
	"paymentsaga/internal/notification"
	"paymentsaga/internal/retrypolicy"
)

func main() {
	log := logging.New("notification-service")
	log.Info().Msg("starting notification service")

	cfg := config.Load(notification.ConsumerGroup())

	b := bus.New(cfg.BusURL, log)
	var err error
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

	var dedup notification.DedupStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		dedup = notification.NewRedisDedupStore(client)
		log.Info().Str("redisAddr", cfg.RedisAddr).Msg("using redis-backed notification dedup store")
	} else {
		dedup = notification.NewInMemoryDedupStore()
		log.Warn().Msg("using in-memory notification dedup store; dedup state is lost on restart")
	}

	dispatcher := notification.NewLoggingDispatcher(log)
	svc := notification.NewService(dedup, dispatcher, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := b.Subscribe(ctx, event.TopicPaymentEvents, notification.ConsumerGroup(), cfg.BusShards,
		retrypolicy.HandlerPolicy(), b.DefaultDLQWriter(), svc.HandlePaymentEvent); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to payment-events")
	}
	if err := b.Subscribe(ctx, event.TopicSagaCompensation, notification.ConsumerGroup(), cfg.BusShards,
		retrypolicy.HandlerPolicy(), b.DefaultDLQWriter(), svc.HandleCompensation); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to saga-compensation")
	}

	log.Info().Msg("notification service ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutting down")

	cancel()
	time.Sleep(200 * time.Millisecond)
	log.Info().Msg("notification service stopped")
}

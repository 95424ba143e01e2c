package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"trimly/pkg/kafka"
	kafkaconfig "trimly/pkg/kafka/config"
	"trimly/pkg/logger"
	"trimly/pkg/model"
)

const ServiceName = "notifier"

// The notifier tails the reservation lifecycle topic. Today it only logs;
// it is the hook point for SMS or push delivery.
func main() {
	log := logger.New(logger.Config{
		Level:   os.Getenv("LOG_LEVEL"),
		Format:  logger.JSON,
		Service: ServiceName,
	})

	cfg := kafkaconfig.Load(ServiceName)
	if cfg.GroupID == "" {
		cfg.GroupID = ServiceName
	}

	consumer, err := kafka.NewConsumer(cfg, log)
	if err != nil {
		log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("Shutdown signal received")
		if err := consumer.Close(); err != nil {
			log.Error("Failed to close consumer", "error", err)
		}
	}()

	err = consumer.Consume(ctx, func(ctx context.Context, msg kafka.Message) error {
		var event model.ReservationEvent
		if err := msg.DecodeValue(&event); err != nil {
			return err
		}

		log.Info("Reservation event received",
			"event_id", msg.GetEventID(),
			"type", event.Type,
			"reservation_id", event.ReservationID,
			"resource_id", event.ResourceID,
			"owner_id", event.OwnerID,
			"status", event.Status,
			"start_time", event.StartTime,
		)
		return nil
	})
	if err != nil {
		log.Fatal("Consumer stopped with error", "error", err)
	}

	log.Info("Notifier stopped")
}

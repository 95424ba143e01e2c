package main

import (
	"trimly/internal/reservations/handler"
	"trimly/internal/reservations/repository"
	"trimly/internal/reservations/service"
	"trimly/internal/reservations/validator"
	"trimly/pkg/app"
	"trimly/pkg/config"
	"trimly/pkg/kafka"
	kafkaconfig "trimly/pkg/kafka/config"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")
	reservationService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewReservationHandler(reservationService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ReservationService {
	reservationValidator := validator.NewReservationValidator(cfg.Log)
	reservationRepo := repository.NewMongoReservationRepository(cfg)

	// Events are best-effort: a missing broker config just disables them.
	var publisher service.EventPublisher
	kafkaCfg := kafkaconfig.Load(ServiceName)
	if kafkaCfg.Topic != "" {
		producer, err := kafka.NewProducer(kafkaCfg, cfg.Log)
		if err != nil {
			cfg.Log.Warn("Kafka producer disabled", "error", err)
		} else {
			publisher = producer
			cfg.Log.Info("Kafka producer initialized", "topic", kafkaCfg.Topic)
		}
	} else {
		cfg.Log.Info("Kafka topic not configured, events disabled")
	}

	reservationService := service.NewReservationService(
		reservationRepo,
		reservationValidator,
		publisher,
		cfg,
	)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return reservationService
}

package main

import (
	"trimly/internal/salons/handler"
	"trimly/internal/salons/repository"
	"trimly/internal/salons/service"
	"trimly/internal/salons/validator"
	"trimly/pkg/app"
	"trimly/pkg/client"
	"trimly/pkg/config"
)

const ServiceName = "salons"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Salons service")
	salonService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewSalonHandler(salonService, cfg.Log, cfg.NearbyMaxRadiusKm))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.SalonService {
	salonValidator := validator.NewSalonValidator(cfg.Log)
	salonRepo := repository.NewMongoSalonRepository(cfg)
	mediaClient := client.NewMediaClient(cfg.MediaBaseURL, cfg.MediaAPIKey, cfg.MediaUploadTimeout)

	salonService := service.NewSalonService(
		salonRepo,
		salonValidator,
		mediaClient,
		cfg,
	)

	cfg.Log.Info("Salon service initialized", "database", cfg.MongoDatabaseName)
	return salonService
}

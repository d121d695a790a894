package main

import (
	bookinghandler "pitchside/internal/bookings/handler"
	bookingrepo "pitchside/internal/bookings/repository"
	bookingservice "pitchside/internal/bookings/service"
	coachrepo "pitchside/internal/coaches/repository"
	paymenthandler "pitchside/internal/payments/handler"
	"pitchside/internal/payments/gateway"
	paymentrepo "pitchside/internal/payments/repository"
	paymentservice "pitchside/internal/payments/service"
	timeslothandler "pitchside/internal/timeslots/handler"
	timeslotrepo "pitchside/internal/timeslots/repository"
	timeslotservice "pitchside/internal/timeslots/service"
	timeslotvalidator "pitchside/internal/timeslots/validator"
	"pitchside/pkg/app"
	"pitchside/pkg/config"
	"pitchside/pkg/events"

	"github.com/julienschmidt/httprouter"
)

const ServiceName = "pitchside-api"

type apiHandlers struct {
	timeslots *timeslothandler.TimeSlotHandler
	bookings  *bookinghandler.BookingHandler
	payments  *paymenthandler.PaymentHandler
}

func (h *apiHandlers) RegisterRoutes(router *httprouter.Router) {
	h.timeslots.RegisterRoutes(router)
	h.bookings.RegisterRoutes(router)
	h.payments.RegisterRoutes(router)
}

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.Log.Info("Starting Pitchside API")
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	publisher := newPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}()

	handlers := initServices(cfg, publisher)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handlers)
	serverApp.Run()
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		cfg.Log.Info("No Kafka brokers configured, events disabled")
		return events.NoopPublisher{}
	}
	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic, ServiceName, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka publisher", "brokers", cfg.KafkaBrokers, "error", err)
	}
	cfg.Log.Info("Kafka publisher configured", "topic", cfg.KafkaEventsTopic)
	return publisher
}

func initServices(cfg *config.Config, publisher events.Publisher) *apiHandlers {
	coachRepository := coachrepo.NewMongoCoachRepository(cfg)
	slotRepository := timeslotrepo.NewMongoTimeSlotRepository(cfg)
	bookingRepository := bookingrepo.NewMongoBookingRepository(cfg)
	lockRepository := bookingrepo.NewSlotLockRepository(cfg)
	paymentRepository := paymentrepo.NewMongoPaymentRepository(cfg)

	gw := gateway.NewHTTPGateway(gateway.Config{
		BaseURL:       cfg.GatewayBaseURL,
		SecretKey:     cfg.GatewaySecretKey,
		WebhookSecret: cfg.GatewayWebhookSecret,
		Timeout:       cfg.GatewayTimeout,
	}, cfg.Log)

	slotValidator := timeslotvalidator.NewTimeSlotValidator(cfg.Log)
	slotService := timeslotservice.NewTimeSlotService(slotRepository, coachRepository, slotValidator, cfg)

	paymentService := paymentservice.NewPaymentService(
		paymentRepository,
		bookingRepository,
		slotRepository,
		gw,
		publisher,
		cfg,
	)

	bookingService := bookingservice.NewBookingService(
		bookingRepository,
		lockRepository,
		slotRepository,
		coachRepository,
		paymentService,
		publisher,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return &apiHandlers{
		timeslots: timeslothandler.NewTimeSlotHandler(slotService, cfg.Log),
		bookings:  bookinghandler.NewBookingHandler(bookingService, cfg.Log),
		payments:  paymenthandler.NewPaymentHandler(paymentService, cfg.Log),
	}
}

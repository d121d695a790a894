package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvGatewayBaseURL       = "PAYMENT_GATEWAY_BASE_URL"
	EnvGatewaySecretKey     = "PAYMENT_GATEWAY_SECRET_KEY"
	EnvGatewayWebhookSecret = "PAYMENT_GATEWAY_WEBHOOK_SECRET"
	EnvGatewayTimeout       = "PAYMENT_GATEWAY_TIMEOUT"
	EnvCurrency             = "PAYMENT_CURRENCY"

	EnvKafkaBrokers     = "KAFKA_BROKERS"
	EnvKafkaEventsTopic = "KAFKA_EVENTS_TOPIC"

	EnvDefaultBookingCutoffHours = "DEFAULT_BOOKING_CUTOFF_HOURS"
	EnvMinSlotDurationMin        = "MIN_SLOT_DURATION_MIN"
	EnvMaxSlotDurationMin        = "MAX_SLOT_DURATION_MIN"
	EnvRecurringWeeksAhead       = "RECURRING_WEEKS_AHEAD"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"
	EnvSlotLockTTL    = "SLOT_LOCK_TTL"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)

package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pitchside/pkg/client"
	"pitchside/pkg/logger"

	"github.com/joho/godotenv"
	"os"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	GatewayBaseURL       string
	GatewaySecretKey     string
	GatewayWebhookSecret string
	GatewayTimeout       time.Duration
	Currency             string

	KafkaBrokers     []string
	KafkaEventsTopic string

	DefaultBookingCutoffHours int
	MinSlotDurationMin        int
	MaxSlotDurationMin        int
	RecurringWeeksAhead       int

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int
	SlotLockTTL    time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// Local development convenience; ignored when no .env exists.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		GatewayBaseURL:       getEnvStr(EnvGatewayBaseURL, DefaultGatewayBaseURL),
		GatewaySecretKey:     getEnvStr(EnvGatewaySecretKey, ""),
		GatewayWebhookSecret: getEnvStr(EnvGatewayWebhookSecret, ""),
		GatewayTimeout:       getEnvDuration(EnvGatewayTimeout, DefaultGatewayTimeout),
		Currency:             getEnvStr(EnvCurrency, DefaultCurrency),

		KafkaBrokers:     getEnvList(EnvKafkaBrokers),
		KafkaEventsTopic: getEnvStr(EnvKafkaEventsTopic, DefaultKafkaEventsTopic),

		DefaultBookingCutoffHours: getEnvNum(EnvDefaultBookingCutoffHours, DefaultBookingCutoffHoursValue),
		MinSlotDurationMin:        getEnvNum(EnvMinSlotDurationMin, DefaultMinSlotDurationMin),
		MaxSlotDurationMin:        getEnvNum(EnvMaxSlotDurationMin, DefaultMaxSlotDurationMin),
		RecurringWeeksAhead:       getEnvNum(EnvRecurringWeeksAhead, DefaultRecurringWeeksAhead),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),
		SlotLockTTL:    getEnvDuration(EnvSlotLockTTL, DefaultSlotLockTTL),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.FormatJSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func (cfg *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		problems = append(problems, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		problems = append(problems, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		problems = append(problems, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoConnTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	if !regexp.MustCompile(`^https?://`).MatchString(cfg.GatewayBaseURL) {
		problems = append(problems, fmt.Sprintf("GatewayBaseURL must be an http(s) URL, got: %s", cfg.GatewayBaseURL))
	}
	if cfg.GatewayTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("GatewayTimeout must be positive, got: %s", cfg.GatewayTimeout))
	}
	if len(cfg.Currency) != 3 {
		problems = append(problems, fmt.Sprintf("Currency must be a 3-letter ISO code, got: %s", cfg.Currency))
	}

	if cfg.DefaultBookingCutoffHours < 0 {
		problems = append(problems, fmt.Sprintf("DefaultBookingCutoffHours cannot be negative, got: %d", cfg.DefaultBookingCutoffHours))
	}
	if cfg.MinSlotDurationMin < 1 {
		problems = append(problems, fmt.Sprintf("MinSlotDurationMin must be positive, got: %d", cfg.MinSlotDurationMin))
	}
	if cfg.MaxSlotDurationMin < cfg.MinSlotDurationMin {
		problems = append(problems, fmt.Sprintf("MaxSlotDurationMin (%d) must be >= MinSlotDurationMin (%d)", cfg.MaxSlotDurationMin, cfg.MinSlotDurationMin))
	}
	if cfg.RecurringWeeksAhead < 1 || cfg.RecurringWeeksAhead > 12 {
		problems = append(problems, fmt.Sprintf("RecurringWeeksAhead must be between 1 and 12, got: %d", cfg.RecurringWeeksAhead))
	}

	for name, d := range map[string]time.Duration{
		"RateLimitWindow": cfg.RateLimitWindow,
		"RequestTimeout":  cfg.RequestTimeout,
		"IdempotencyTTL":  cfg.IdempotencyTTL,
		"SlotLockTTL":     cfg.SlotLockTTL,
		"ReadTimeout":     cfg.ReadTimeout,
		"WriteTimeout":    cfg.WriteTimeout,
		"IdleTimeout":     cfg.IdleTimeout,
		"ShutdownTimeout": cfg.ShutdownTimeout,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got: %s", name, d))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		problems = append(problems, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		problems = append(problems, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"port", cfg.Port,
		"gateway_base_url", cfg.GatewayBaseURL,
		"gateway_timeout", cfg.GatewayTimeout,
		"currency", cfg.Currency,
		"kafka_brokers", cfg.KafkaBrokers,
		"kafka_events_topic", cfg.KafkaEventsTopic,
		"default_booking_cutoff_hours", cfg.DefaultBookingCutoffHours,
		"min_slot_duration_min", cfg.MinSlotDurationMin,
		"max_slot_duration_min", cfg.MaxSlotDurationMin,
		"recurring_weeks_ahead", cfg.RecurringWeeksAhead,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"slot_lock_ttl", cfg.SlotLockTTL,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

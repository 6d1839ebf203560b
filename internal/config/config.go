package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	CRDBDSN            string
	MongoURI           string
	RedisAddr          string
	RabbitURL          string
	HTTPAddr           string
	BookingTimeout     time.Duration
	ConsumerWorkers    int
	ConsumerPrefetch   int
	GatewaySuccessRate float64
	OTLPEndpoint       string
	ServiceName        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	bookingTimeout, _ := time.ParseDuration(os.Getenv("BOOKING_TIMEOUT"))
	if bookingTimeout == 0 {
		bookingTimeout = 10 * time.Minute
	}

	workers, _ := strconv.Atoi(os.Getenv("CONSUMER_WORKERS"))
	if workers == 0 {
		workers = 8
	}

	prefetch, _ := strconv.Atoi(os.Getenv("CONSUMER_PREFETCH"))
	if prefetch == 0 {
		prefetch = 16
	}

	successRate, err := strconv.ParseFloat(os.Getenv("GATEWAY_SUCCESS_RATE"), 64)
	if err != nil {
		successRate = 0.95
	}

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	serviceName := os.Getenv("SERVICE_NAME")
	if serviceName == "" {
		serviceName = "booking-saga"
	}

	return &Config{
		CRDBDSN:            os.Getenv("CRDB_DSN"),
		MongoURI:           os.Getenv("MONGO_URI"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RabbitURL:          os.Getenv("RABBIT_URL"),
		HTTPAddr:           httpAddr,
		BookingTimeout:     bookingTimeout,
		ConsumerWorkers:    workers,
		ConsumerPrefetch:   prefetch,
		GatewaySuccessRate: successRate,
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:        serviceName,
	}, nil
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bookingmicro/booking-saga/internal/adapters/crdb"
	mongoadapter "github.com/bookingmicro/booking-saga/internal/adapters/mongo"
	"github.com/bookingmicro/booking-saga/internal/adapters/rabbit"
	redisadapter "github.com/bookingmicro/booking-saga/internal/adapters/redis"
	"github.com/bookingmicro/booking-saga/internal/booking"
	"github.com/bookingmicro/booking-saga/internal/config"
	"github.com/bookingmicro/booking-saga/internal/consumer"
	"github.com/bookingmicro/booking-saga/internal/events"
	httphandler "github.com/bookingmicro/booking-saga/internal/http"
	"github.com/bookingmicro/booking-saga/internal/idempotency"
	"github.com/bookingmicro/booking-saga/internal/observability"
	"github.com/bookingmicro/booking-saga/internal/outbox"
	"github.com/bookingmicro/booking-saga/internal/rateLimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := observability.SetupOTel(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("bookingsaga")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	pub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	svc := booking.NewService(repo, catalog, pub, audit, logger, cfg.BookingTimeout)

	relay := outbox.NewRelay(repo, pub, logger, time.Second, 100)
	go relay.Run(ctx)

	cons, err := rabbit.NewConsumer(rabbitConn, "booking.q", []string{
		events.KeyPaymentCreated,
		events.KeyRoomReserveRejected,
		events.KeyCancelBookingTimeout,
		events.KeyPaymentRefunded,
		events.KeyPaymentRefundFailed,
	}, cfg.ConsumerPrefetch)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer cons.Close()

	worker := consumer.NewWorker(map[string]consumer.HandlerFunc{
		events.KeyPaymentCreated:       consumer.JSON(svc.ApplyPaymentCreated),
		events.KeyRoomReserveRejected:  consumer.JSON(svc.ApplyRoomReserveRejected),
		events.KeyCancelBookingTimeout: consumer.JSON(svc.ApplyCancelTimeout),
		events.KeyPaymentRefunded:      consumer.JSON(svc.ApplyPaymentRefunded),
		events.KeyPaymentRefundFailed:  consumer.JSON(svc.ApplyPaymentRefundFailed),
	}, cfg.ConsumerWorkers, logger)

	deliveries, err := cons.Deliveries(ctx)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}
	go func() {
		if err := worker.Run(ctx, deliveries); err != nil {
			logger.Error("consumer stopped: ", err)
		}
	}()

	handlers := httphandler.NewBookingHandlers(svc, idemp)
	r := httphandler.SetupBookingRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}

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
	"github.com/bookingmicro/booking-saga/internal/config"
	"github.com/bookingmicro/booking-saga/internal/consumer"
	"github.com/bookingmicro/booking-saga/internal/events"
	"github.com/bookingmicro/booking-saga/internal/gateway"
	httphandler "github.com/bookingmicro/booking-saga/internal/http"
	"github.com/bookingmicro/booking-saga/internal/observability"
	"github.com/bookingmicro/booking-saga/internal/payment"
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
	catalog := mongoadapter.NewCatalogRepository(mongoClient.Database("bookingsaga"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	rl := rateLimit.NewRateLimiter(redisadapter.NewCache(redisClient))

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	pub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	gw := gateway.NewSimulated(cfg.GatewaySuccessRate, 100*time.Millisecond)
	svc := payment.NewService(repo, catalog, gw, pub, logger)

	cons, err := rabbit.NewConsumer(rabbitConn, "payment.q", []string{
		events.KeyBookingCreated,
		events.KeyBookingCancelled,
	}, cfg.ConsumerPrefetch)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer cons.Close()

	worker := consumer.NewWorker(map[string]consumer.HandlerFunc{
		events.KeyBookingCreated:   consumer.JSON(svc.HandleBookingCreated),
		events.KeyBookingCancelled: consumer.JSON(svc.HandleBookingCancelled),
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

	handlers := httphandler.NewPaymentHandlers(svc)
	r := httphandler.SetupPaymentRouter(handlers, logger, rl)

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

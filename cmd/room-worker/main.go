package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/bookingmicro/booking-saga/internal/adapters/mongo"
	"github.com/bookingmicro/booking-saga/internal/adapters/rabbit"
	"github.com/bookingmicro/booking-saga/internal/config"
	"github.com/bookingmicro/booking-saga/internal/consumer"
	"github.com/bookingmicro/booking-saga/internal/events"
	"github.com/bookingmicro/booking-saga/internal/observability"
	"github.com/bookingmicro/booking-saga/internal/room"
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

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	catalog := mongoadapter.NewCatalogRepository(mongoClient.Database("bookingsaga"), logger)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	pub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	handler := room.NewHandler(catalog, pub, logger)

	cons, err := rabbit.NewConsumer(rabbitConn, "room.q", []string{
		events.KeyRoomReserveRequested,
	}, cfg.ConsumerPrefetch)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer cons.Close()

	worker := consumer.NewWorker(map[string]consumer.HandlerFunc{
		events.KeyRoomReserveRequested: consumer.JSON(handler.HandleReserveRequested),
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

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown worker ...")
	cancel()
}

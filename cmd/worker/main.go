package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/localwebb/backend/internal/config"
	"github.com/localwebb/backend/internal/metrics"
	"github.com/localwebb/backend/internal/queue"
	"github.com/localwebb/backend/internal/storage"
	"github.com/localwebb/backend/internal/util"
	"github.com/localwebb/backend/pkg/leaselock"
	"github.com/localwebb/backend/pkg/logger"
	"github.com/localwebb/backend/pkg/logger/console"
	pgxstore "github.com/localwebb/backend/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	processor := &queue.LayoutProcessor{
		Store:  pgxstore.NewGraphDBStorageWithConnection(pgConn),
		Locks:  leaselock.New(pgConn),
		Params: config.LayoutParams(),
		Lease:  config.Lease(),
	}
	if util.GetEnv("AWS_BUCKET") != "" {
		if client := storage.NewS3Client(ctx); client != nil {
			processor.Objects = client
		}
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// A single consumer channel with prefetch=1 so that one layout runs at a
	// time per worker process.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.LayoutQueue,
		fmt.Sprintf("%s_consumer", queue.LayoutQueue),
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.LayoutQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.LayoutQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.LayoutQueue)
				return
			}
			startTime := time.Now()
			logger.Info("Received message", "queue", queue.LayoutQueue)

			if err := processor.ProcessLayoutMessage(ctx, string(msg.Body)); err != nil {
				logger.Error("Error processing message", "queue", queue.LayoutQueue, "err", err)
				handleProcessingError(consumerCh, msg, queue.LayoutQueue)
			} else {
				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", queue.LayoutQueue)
			}

			metrics.UpdateSystemMetrics()
			processingDuration := time.Since(startTime)
			logger.Info(
				"Processing time",
				"duration", fmt.Sprintf("%02d:%02d:%02d",
					int(processingDuration.Hours()),
					int(processingDuration.Minutes())%60,
					int(processingDuration.Seconds())%60,
				),
			)
		}
	}
}

func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	target, headers := queue.RetryTarget(queueName, msg.Headers)
	if target == queueName+"_dlq" {
		logger.Info("Sending message to DLQ", "dlq", target)
	}

	pubErr := ch.Publish(
		"",
		target,
		false,
		false,
		amqp.Publishing{
			ContentType: msg.ContentType,
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to republish message", "target", target, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

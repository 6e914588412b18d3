// Command eventctl publishes one producer event to the notification events
// queue. The event is read as JSON from -file, or from stdin when -file is
// omitted or "-".
//
//	eventctl -queue ops.notification.events -file alert.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"github.com/kursadbilgin/notify-dispatch/internal/queue"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	url := flag.String("url", os.Getenv("RABBITMQ_URL"), "rabbitmq url")
	queueName := flag.String("queue", envOr("EVENTS_QUEUE", queue.DefaultEventsQueue), "destination queue")
	file := flag.String("file", "-", "event json file, - for stdin")
	timeout := flag.Duration("timeout", 10*time.Second, "publish timeout")
	flag.Parse()

	logger, err := observability.NewLogger(envOr("LOG_LEVEL", "info"))
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	msg, err := readEvent(*file)
	if err != nil {
		logger.Fatal("failed to read event", zap.Error(err))
	}
	if msg.EventID == "" {
		msg.EventID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	mq, err := queue.NewRabbitMQ(ctx, *url, *queueName)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	publisher := queue.NewRabbitMQPublisher(mq)
	defer publisher.Close() //nolint:errcheck

	if err := publisher.Publish(ctx, *queueName, msg); err != nil {
		logger.Fatal("publish failed", zap.Error(err))
	}

	logger.Info("event published",
		zap.String("queue", *queueName),
		zap.String("type", string(msg.Type)),
		zap.String("eventId", msg.EventID),
	)
}

func readEvent(path string) (queue.EventMessage, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return queue.EventMessage{}, err
		}
		defer f.Close()
		r = f
	}

	var msg queue.EventMessage
	if err := json.NewDecoder(r).Decode(&msg); err != nil {
		return queue.EventMessage{}, fmt.Errorf("invalid event json: %w", err)
	}
	return msg, msg.Validate()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

package queue

import (
	"fmt"
	"time"

	"github.com/localwebb/backend/internal/util"
	"github.com/localwebb/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	LayoutQueue = "layout_queue"

	// MaxRetries is the number of redeliveries before a message is parked
	// in the dead-letter queue.
	MaxRetries = 10

	retryTTL = 10 * time.Second
)

// Queues lists every work queue consumed by the worker.
var Queues = []string{LayoutQueue}

func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// Declarer is the part of *amqp091.Channel needed to declare queues.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

// SetupQueues declares each queue together with its _retry and _dlq
// companions. Retry queues dead-letter back into the work queue after
// retryTTL.
func SetupQueues(ch Declarer, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryTTL / time.Millisecond),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}

	return nil
}

// Publisher is the part of *amqp091.Channel needed to publish.
type Publisher interface {
	Declarer
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func PublishFIFO(ch Publisher, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		q.Name,
		false,
		false,
		publishing,
	)
}

// Retries reads the x-retries header set by RetryTarget.
func Retries(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// RetryTarget decides where a failed delivery goes next and returns the
// headers to publish it with.
func RetryTarget(queueName string, headers amqp091.Table) (string, amqp091.Table) {
	retries := Retries(headers)
	if retries >= MaxRetries {
		return queueName + "_dlq", headers
	}
	next := amqp091.Table{}
	for k, v := range headers {
		next[k] = v
	}
	next["x-retries"] = int32(retries + 1)
	return queueName + "_retry", next
}

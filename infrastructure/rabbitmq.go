package infrastructure

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"resume-screener/pipeline"
)

// RabbitMQ dispatches pipeline tasks through one durable queue with
// at-least-once delivery. Messages are acked only after the handler returns,
// so a worker crash redelivers the task; handlers are idempotent.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func NewRabbitMQ(url, queueName string) *RabbitMQ {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}

	return &RabbitMQ{conn: conn, channel: ch, queue: q}
}

// Enqueue publishes a task message. The attempt count rides in a header so
// redelivered work is observable to the handler.
func (r *RabbitMQ) Enqueue(ctx context.Context, msg pipeline.TaskMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.channel.PublishWithContext(
		pubCtx,
		"",           // exchange
		r.queue.Name, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{"x-attempt": int32(msg.Attempt)},
			Body:         body,
		},
	)
}

// Consume runs n worker goroutines feeding deliveries to the pipeline worker.
// A handler error still acks: terminal failures are already recorded on the
// job record, and endless redelivery of a poison message helps nobody.
func (r *RabbitMQ) Consume(ctx context.Context, w *pipeline.Worker, n int, logger *logrus.Logger) error {
	if err := r.channel.Qos(n, 0, false); err != nil {
		return err
	}

	msgs, err := r.channel.Consume(
		r.queue.Name,
		"",
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		go func() {
			for d := range msgs {
				var msg pipeline.TaskMessage
				if err := json.Unmarshal(d.Body, &msg); err != nil {
					logger.WithError(err).Warn("dropping malformed task message")
					_ = d.Nack(false, false)
					continue
				}
				if attempt, ok := d.Headers["x-attempt"].(int32); ok {
					msg.Attempt = int(attempt)
				}
				_ = w.Handle(ctx, msg)
				_ = d.Ack(false)
			}
		}()
	}
	return nil
}

func (r *RabbitMQ) Close() {
	_ = r.channel.Close()
	_ = r.conn.Close()
}

package events

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/kelvinpraises/vidrune/internal/logger"
)

// RabbitMQPublisher pushes status updates onto a durable queue.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	log     logger.Logger
}

// NewRabbitMQPublisher dials the broker and declares the status queue.
func NewRabbitMQPublisher(url, queueName string, log logger.Logger) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queue, err := channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	log.Info("rabbitmq status publisher ready", logger.String("queue", queueName))

	return &RabbitMQPublisher{conn: conn, channel: channel, queue: queue, log: log}, nil
}

func (p *RabbitMQPublisher) PublishStatus(update StatusUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal status update: %w", err)
	}

	err = p.channel.Publish(
		"",
		p.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		p.log.Error("failed to publish status update", logger.Error(err))
		return err
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

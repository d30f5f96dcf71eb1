package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/giobyte8/gallerist/internal/models"
	"github.com/giobyte8/gallerist/internal/telemetry"
	"github.com/giobyte8/gallerist/internal/telemetry/metrics"
)

var ErrInvalidMessage = errors.New("invalid build request message")

// Holds the config params for the consumer
type AMQPConfig struct {
	AMQPUri  string
	Exchange string

	GalleryBuildQueueName string
}

type AMQPConsumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	config    AMQPConfig
	processor BuildRequestProcessor
	telemetry *telemetry.TelemetrySvc
}

// Creates a new AMQPConsumer instance ready to connect to broker
func NewAMQPConsumer(
	config AMQPConfig,
	processor BuildRequestProcessor,
	telemetry *telemetry.TelemetrySvc,
) (*AMQPConsumer, error) {

	if config.AMQPUri == "" {
		return nil, fmt.Errorf("AMQP URI cannot be empty in config")
	}
	if config.Exchange == "" {
		return nil, fmt.Errorf("AMQP exchange cannot be empty in config")
	}
	if config.GalleryBuildQueueName == "" {
		return nil, fmt.Errorf(
			"AMQP gallery build queue name cannot be empty in config",
		)
	}
	if processor == nil {
		return nil, fmt.Errorf("build request processor cannot be nil")
	}

	return &AMQPConsumer{
		config:    config,
		processor: processor,
		telemetry: telemetry,
	}, nil
}

// Connects to AMQP broker, declares exchange and queue and
// starts consuming messages
func (c *AMQPConsumer) Start(ctx context.Context) error {
	slog.Debug("AMQP - Initializing AMQP Consumer")

	var err error
	c.conn, err = amqp.Dial(c.config.AMQPUri)
	if err != nil {
		return fmt.Errorf("AMQP - Connection to broker failed: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("AMQP - Failed to open channel: %w", err)
	}

	err = c.channel.ExchangeDeclare(
		c.config.Exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		c.closeAll()
		return fmt.Errorf("AMQP - Failed to declare exchange: %w", err)
	}

	if err := c.declareAndBind(c.config.GalleryBuildQueueName); err != nil {
		c.closeAll()
		return fmt.Errorf(
			"AMQP - Failed to declare/bind gallery build queue: %w",
			err,
		)
	}

	// A build saturates every worker, take one request at a time
	if err := c.channel.Qos(1, 0, false); err != nil {
		c.closeAll()
		return fmt.Errorf("AMQP - Failed to set channel prefetch: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.config.GalleryBuildQueueName,
		"gallerist-build", // Consumer tag
		false,             // Auto-acknowledge
		false,             // Exclusive
		false,             // No-local
		false,             // No-wait
		nil,               // Arguments
	)
	if err != nil {
		c.closeAll()
		return fmt.Errorf(
			"AMQP - Failed to create gallery build queue consumer: %w",
			err,
		)
	}

	go c.consumeBuildRequests(ctx, msgs)
	return nil
}

// Gracefully stops the AMQP consumer
func (c *AMQPConsumer) Stop() {
	slog.Info("AMQP - Stopping AMQP Consumer...")

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			slog.Error("AMQP - Failed to close channel", "error", err)
		} else {
			slog.Debug("AMQP - Channel closed")
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			slog.Error("AMQP - Failed to close connection", "error", err)
		} else {
			slog.Debug("AMQP - Connection closed")
		}
	}

	slog.Info("AMQP - AMQP Consumer stopped")
}

func (c *AMQPConsumer) declareAndBind(queueName string) error {
	_, err := c.channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	return c.channel.QueueBind(
		queueName,         // Queue
		queueName,         // Routing key
		c.config.Exchange, // Exchange
		false,             // No-wait
		nil,               // Arguments
	)
}

func (c *AMQPConsumer) closeAll() {
	c.channel.Close()
	c.conn.Close()
}

func (c *AMQPConsumer) consumeBuildRequests(
	ctx context.Context,
	msgs <-chan amqp.Delivery,
) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				slog.Info(
					"AMQP - Gallery build message channel closed. goroutine exiting",
				)
				return
			}

			if err := c.handle(ctx, msg.Body); err != nil {
				slog.Error(
					"AMQP - Failed to handle gallery build message",
					"error",
					err,
				)

				if nackErr := msg.Nack(false, false); nackErr != nil {
					slog.Error(
						"AMQP - Failed to nack gallery build message",
						"error",
						nackErr,
					)
				}
				continue
			}

			if err := msg.Ack(false); err != nil {
				slog.Error(
					"AMQP - Failed to acknowledge gallery build message",
					"error",
					err,
				)
			}

		case <-ctx.Done():
			slog.Info(
				"AMQP - Context done signal received, " +
					"stopping gallery build consumption goroutine...",
			)
			return
		}
	}
}

// handle decodes one message body and runs the build it requests.
func (c *AMQPConsumer) handle(ctx context.Context, body []byte) error {
	req, err := decodeBuildRequest(body)
	if err != nil {
		return err
	}

	c.telemetry.Metrics().Increment(metrics.BuildRequestReceived, nil)
	slog.Info(
		"AMQP - Gallery build request received",
		"buildRequestId", req.BuildRequestId,
		"inputDir", req.InputDir,
	)

	if err := c.processor.ProcessBuildRequest(ctx, req); err != nil {
		return fmt.Errorf(
			"failed to process build request %s: %w",
			req.BuildRequestId,
			err,
		)
	}
	return nil
}

func decodeBuildRequest(body []byte) (models.BuildRequest, error) {
	var req models.BuildRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("%w: %v: %s", ErrInvalidMessage, err, body)
	}

	if req.InputDir == "" || req.OutputDir == "" {
		return req, fmt.Errorf(
			"%w: inputDir and outputDir are required: %s",
			ErrInvalidMessage,
			body,
		)
	}
	return req, nil
}

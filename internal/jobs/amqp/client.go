// Package amqp moves report jobs between the API and worker processes over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/jobs"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var errMissingTaskID = errors.New("message has no task_id")

const publishTimeout = 5 * time.Second

// Client publishes and consumes report jobs. Job state lives in the shared
// JobStore; messages carry task ids only.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	store        jobs.JobStore
	log          zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient dials the broker and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string, store jobs.JobStore, log zerolog.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("NewClient: dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("NewClient: open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		store:        store,
		log:          log,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("NewClient: setup exchange and queue: %w", err)
	}
	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	// one unacknowledged report per worker
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// PublishReport implements jobs.Publisher.
func (c *Client) PublishReport(ctx context.Context, job *jobs.ReportJob) error {
	body, err := NewReportMessage(job.TaskID).ToJSON()
	if err != nil {
		return fmt.Errorf("PublishReport: marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			MessageId:    job.TaskID,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("PublishReport: publish message: %w", err)
	}

	c.log.Info().Str("task_id", job.TaskID).Str("queue", c.queueName).Msg("published report job")
	return nil
}

// Start implements jobs.Consumer. Deliveries are processed one at a time in a
// background goroutine until Stop is called or ctx is done.
func (c *Client) Start(ctx context.Context, handler jobs.JobHandler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("Start: start consuming: %w", err)
	}

	c.startLoop(ctx, msgs, handler)
	c.log.Info().Str("queue", c.queueName).Msg("started consuming report jobs")
	return nil
}

func (c *Client) startLoop(ctx context.Context, msgs <-chan amqp091.Delivery, handler jobs.JobHandler) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.consume(ctx, msgs, handler)
	}()
}

func (c *Client) consume(ctx context.Context, msgs <-chan amqp091.Delivery, handler jobs.JobHandler) {
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Err(ctx.Err()).Msg("stopping report consumption")
			return
		case delivery, ok := <-msgs:
			if !ok {
				c.log.Warn().Msg("delivery channel closed")
				return
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery runs one job to completion. Cancelling the consume loop does
// not cancel the job in progress; Stop waits for it instead.
func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler jobs.JobHandler) {
	ctx = context.WithoutCancel(ctx)
	msg, err := ReportMessageFromJSON(delivery.Body)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to decode message")
		delivery.Nack(false, false)
		return
	}

	job, err := c.store.GetJob(ctx, msg.TaskID)
	if err != nil {
		if domain.IsNotFound(err) {
			c.log.Warn().Str("task_id", msg.TaskID).Msg("job no longer exists, dropping message")
			delivery.Ack(false)
			return
		}
		c.log.Error().Err(err).Str("task_id", msg.TaskID).Msg("failed to load job, requeueing")
		delivery.Nack(false, true)
		return
	}
	if job.Status.IsTerminal() {
		delivery.Ack(false)
		return
	}

	jobs.Run(ctx, c.store, job, handler, c.log)
	delivery.Ack(false)
}

// Stop implements jobs.Consumer. It waits for the delivery in progress.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher.
func (c *Client) Close() error {
	_ = c.Stop(context.Background())
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

var _ jobs.Publisher = (*Client)(nil)
var _ jobs.Consumer = (*Client)(nil)

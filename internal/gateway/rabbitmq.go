package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrConnectionClosed = errors.New("rabbitmq connection closed")

// RabbitMQConfig holds settings for the broker transport.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// RabbitMQ carries commands over AMQP as request/reply pairs. Requests go to
// the command exchange; replies come back on an exclusive queue and are
// matched by correlation id.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	replyQueue string
	logger     *slog.Logger

	publishMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan []byte
	closed  chan struct{}
}

type commandMessage struct {
	Command Command `json:"command"`
	Args    Args    `json:"args"`
}

func NewRabbitMQ(cfg RabbitMQConfig, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	fail := func(step string, err error) (*RabbitMQ, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail("declare exchange", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail("declare queue", err)
	}

	err = ch.QueueBind(
		q.Name,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		return fail("bind queue", err)
	}

	replies, err := ch.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		return fail("declare reply queue", err)
	}

	deliveries, err := ch.Consume(
		replies.Name,
		"",
		true,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail("consume replies", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
		"reply_queue", replies.Name,
	)

	r := &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		replyQueue: replies.Name,
		logger:     logger,
		pending:    make(map[string]chan []byte),
		closed:     make(chan struct{}),
	}
	go r.dispatch(deliveries)

	return r, nil
}

func (r *RabbitMQ) Invoke(ctx context.Context, command Command, args Args) (json.RawMessage, error) {
	if args == nil {
		args = NoArgs()
	}
	body, err := json.Marshal(commandMessage{Command: command, Args: args})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	id := uuid.NewString()
	reply := make(chan []byte, 1)

	r.mu.Lock()
	r.pending[id] = reply
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	r.publishMu.Lock()
	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: id,
			ReplyTo:       r.replyQueue,
			Type:          string(command),
			Body:          body,
			Timestamp:     time.Now(),
		},
	)
	r.publishMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published command",
		"command", command,
		"correlation_id", id,
	)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.closed:
		return nil, ErrConnectionClosed
	case data := <-reply:
		if !json.Valid(data) {
			return nil, errors.New("decode reply: invalid JSON")
		}
		return json.RawMessage(data), nil
	}
}

func (r *RabbitMQ) dispatch(deliveries <-chan amqp.Delivery) {
	defer close(r.closed)
	for d := range deliveries {
		r.mu.Lock()
		reply, ok := r.pending[d.CorrelationId]
		r.mu.Unlock()
		if !ok {
			r.logger.Debug("dropping reply without waiter", "correlation_id", d.CorrelationId)
			continue
		}
		select {
		case reply <- d.Body:
		default:
			r.logger.Debug("dropping duplicate reply", "correlation_id", d.CorrelationId)
		}
	}
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/franzego/partnernotify/internal/config"
	"github.com/franzego/partnernotify/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher announces admin writes to downstream consumers.
type Publisher interface {
	PublishChange(ctx context.Context, event models.ChangeEvent) error
	IsConnected() bool
}

type RabbitMqClient struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	Config    config.RabbitMQConfig
	connected atomic.Bool
	log       *zap.Logger
}

func NewRabbitMqService(cfg config.RabbitMQConfig, log *zap.Logger) (*RabbitMqClient, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	r := &RabbitMqClient{
		Conn:    conn,
		Channel: channel,
		Config:  cfg,
		log:     log,
	}
	r.connected.Store(true)

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closed; ok && err != nil {
			log.Error("rabbitmq connection closed", zap.Error(err))
		}
		r.connected.Store(false)
	}()
	return r, nil
}

func (r *RabbitMqClient) CloseConnection() {
	r.connected.Store(false)
	r.Channel.Close()
	r.Conn.Close()
}

func (r *RabbitMqClient) IsConnected() bool {
	return r.connected.Load() && !r.Conn.IsClosed()
}

// SetUpExchangeAndQueue declares the direct exchange and binds the change queue to it.
func (r *RabbitMqClient) SetUpExchangeAndQueue() error {
	if err := r.Channel.ExchangeDeclare(
		r.Config.Exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", r.Config.Exchange, err)
	}
	if _, err := r.Channel.QueueDeclare(
		r.Config.ChangeQueue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", r.Config.ChangeQueue, err)
	}
	if err := r.Channel.QueueBind(
		r.Config.ChangeQueue,
		r.Config.ChangeQueue,
		r.Config.Exchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", r.Config.ChangeQueue, err)
	}
	return nil
}

func (r *RabbitMqClient) Publish(ctx context.Context, routingKey string, message interface{}) error {
	by, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	err = r.Channel.PublishWithContext(
		ctx,
		r.Config.Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         by,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (r *RabbitMqClient) PublishChange(ctx context.Context, event models.ChangeEvent) error {
	return r.Publish(ctx, r.Config.ChangeQueue, event)
}

var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// NewPublisher returns the broker client, or a stand-in when mock mode is on,
// no URL is set, or the broker could not be reached. The returned close
// function is always safe to call.
func NewPublisher(cfg config.RabbitMQConfig, mockServices bool, log *zap.Logger) (Publisher, func()) {
	if mockServices || cfg.URL == "" {
		log.Info("Running without RabbitMQ, change events are dropped")
		return NopPublisher{Log: log}, func() {}
	}
	rabbit, err := NewRabbitMqService(cfg, log)
	if err == nil {
		err = rabbit.SetUpExchangeAndQueue()
		if err != nil {
			rabbit.CloseConnection()
		}
	}
	if err != nil {
		log.Error("Failed to connect to RabbitMQ, change events are dropped", zap.Error(err))
		return DownPublisher{Err: err}, func() {}
	}
	log.Info("RabbitMQ connected")
	return rabbit, rabbit.CloseConnection
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct {
	Log *zap.Logger
}

func (n NopPublisher) PublishChange(_ context.Context, event models.ChangeEvent) error {
	if n.Log != nil {
		n.Log.Debug("change event dropped, no broker configured",
			zap.String("notification_id", event.NotificationID),
			zap.String("action", string(event.Action)),
		)
	}
	return nil
}

func (NopPublisher) IsConnected() bool { return true }

// DownPublisher stands in for a configured broker that could not be reached.
type DownPublisher struct {
	Err error
}

func (d DownPublisher) PublishChange(_ context.Context, event models.ChangeEvent) error {
	return fmt.Errorf("%w: %v", ErrBrokerUnavailable, d.Err)
}

func (DownPublisher) IsConnected() bool { return false }

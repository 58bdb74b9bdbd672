package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/logger"
)

const DefaultQueue = "jobradar.notifications"

// LogDispatcher writes notifications to the log. It is the default when no
// broker is configured.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.OrNop(log)}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n Notification) error {
	for _, j := range n.Jobs {
		d.logger.Info("job match",
			zap.String(logger.FieldUserID, n.UserID),
			zap.String("tier", string(n.Tier)),
			zap.String(logger.FieldJobID, j.JobID),
			zap.String("title", j.Title),
			zap.String("company", j.Company),
			zap.Float64("score", j.FinalScore),
			zap.String("label", string(j.Label)),
			zap.String("url", j.URL),
		)
	}
	return nil
}

// Publisher is the subset of *amqp.Channel the dispatcher needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPDispatcher publishes notifications as JSON to a RabbitMQ queue for the
// delivery service.
type AMQPDispatcher struct {
	publisher Publisher
	queue     string
	conn      *amqp.Connection
	channel   *amqp.Channel
}

func NewAMQPDispatcher(publisher Publisher, queue string) *AMQPDispatcher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPDispatcher{publisher: publisher, queue: queue}
}

// DialAMQP connects to the broker and declares a durable queue.
func DialAMQP(url, queue string) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	d := NewAMQPDispatcher(ch, queue)
	if _, err := ch.QueueDeclare(d.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", d.queue, err)
	}
	d.conn = conn
	d.channel = ch
	return d, nil
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return apperrors.Internal("encode notification", err).WithUser(n.UserID)
	}

	err = d.publisher.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(n.Tier),
		Timestamp:    n.SentAt,
		Body:         body,
	})
	if err != nil {
		return apperrors.Transient("publish notification", err).WithUser(n.UserID)
	}
	return nil
}

// Close releases the broker connection opened by DialAMQP.
func (d *AMQPDispatcher) Close() error {
	if d.channel != nil {
		_ = d.channel.Close()
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

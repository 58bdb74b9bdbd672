// Package events listens for user lifecycle events on NATS and turns them
// into pipeline runs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/logger"
)

const (
	DefaultSubject = "users.created"
	DefaultQueue   = "jobradar"
)

type Config struct {
	URL         string        `mapstructure:"url"`
	Subject     string        `mapstructure:"subject"`
	Queue       string        `mapstructure:"queue"`
	ConnTimeout time.Duration `mapstructure:"conn-timeout"`
}

// NewUserEvent is published by the account service when a user signs up.
type NewUserEvent struct {
	UserID string `json:"user_id"`
}

// Trigger queues a run for a user.
type Trigger interface {
	Trigger(userID string, manual bool) (bool, error)
}

// Connect opens a NATS connection that keeps retrying in the background when
// the server is not up yet.
func Connect(cfg Config) (*nats.Conn, error) {
	timeout := cfg.ConnTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Timeout(timeout),
		nats.Name("jobradar"),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

type Subscriber struct {
	cfg     Config
	nc      *nats.Conn
	trigger Trigger
	logger  *zap.Logger
	tracer  trace.Tracer
	sub     *nats.Subscription
}

func NewSubscriber(cfg Config, nc *nats.Conn, trigger Trigger, log *zap.Logger) *Subscriber {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	return &Subscriber{
		cfg:     cfg,
		nc:      nc,
		trigger: trigger,
		logger:  logger.OrNop(log),
		tracer:  otel.Tracer("github.com/spigell/jobradar/internal/events"),
	}
}

// Register subscribes as part of a queue group, so each event is handled by
// one instance, and unsubscribes when the application stops.
func (s *Subscriber) Register(lc fx.Lifecycle) error {
	sub, err := s.nc.QueueSubscribe(s.cfg.Subject, s.cfg.Queue, s.handle)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.Subject, err)
	}
	s.sub = sub
	s.logger.Info("registered nats subscription", zap.String("subject", s.cfg.Subject), zap.String("queue", s.cfg.Queue))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.sub.Unsubscribe()
		},
	})
	return nil
}

func (s *Subscriber) handle(msg *nats.Msg) {
	_, span := s.tracer.Start(context.Background(), "events.new_user", trace.WithAttributes(
		attribute.String("subject", msg.Subject),
	))
	defer span.End()

	if err := s.process(msg.Data); err != nil {
		span.RecordError(err)
		s.logger.Error("failed to handle new user event", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

func (s *Subscriber) process(data []byte) error {
	var event NewUserEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	userID := strings.TrimSpace(event.UserID)
	if userID == "" {
		return fmt.Errorf("event has no user id")
	}

	queued, err := s.trigger.Trigger(userID, false)
	if err != nil {
		return fmt.Errorf("queue run for %s: %w", userID, err)
	}
	s.logger.Info("new user run requested", zap.String(logger.FieldUserID, userID), zap.Bool("queued", queued))
	return nil
}

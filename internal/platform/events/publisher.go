// Package events fans domain events out to the services that subscribe to
// them, over AMQP queues or Kafka topics.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/platform/transport"
)

// Routes maps a topic to the services interested in it.
type Routes map[string][]string

// Connector is implemented by emitters that open a connection eagerly.
type Connector interface {
	Connect(ctx context.Context) error
}

// Publisher emits one copy of each event per interested service. Publishing
// never fails the caller: each attempt is isolated and failures are logged.
type Publisher struct {
	emitter transport.Emitter
	routes  Routes
	logger  *slog.Logger
	timeout time.Duration
}

func NewPublisher(emitter transport.Emitter, routes Routes, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		emitter: emitter,
		routes:  routes,
		logger:  logger.With("module", "events.publisher", "layer", "platform"),
		timeout: 5 * time.Second,
	}
}

// Connect opens the emitter's connection if it has one. A failure is logged
// and the publisher stays usable; later publishes fail and are contained.
func (p *Publisher) Connect(ctx context.Context) {
	c, ok := p.emitter.(Connector)
	if !ok {
		return
	}
	if err := c.Connect(ctx); err != nil {
		p.logger.ErrorContext(ctx, "event emitter connect failed",
			"operation", "connect",
			"outcome", "failure",
			"error", err,
		)
	}
}

func (p *Publisher) Publish(ctx context.Context, topic string, payload any) {
	targets := p.routes[topic]
	if len(targets) == 0 {
		p.logger.WarnContext(ctx, "event has no routes",
			"operation", "publish",
			"outcome", "ignored",
			"topic", topic,
		)
		return
	}
	for _, service := range targets {
		p.emit(ctx, service, topic, payload)
	}
}

func (p *Publisher) emit(ctx context.Context, service, topic string, payload any) {
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.emitter.Emit(emitCtx, service, topic, payload); err != nil {
		p.logger.ErrorContext(ctx, "event publish failed",
			"operation", "publish",
			"outcome", "failure",
			"topic", topic,
			"target_service", service,
			"error", err,
		)
		return
	}
	p.logger.InfoContext(ctx, "event published",
		"operation", "publish",
		"outcome", "success",
		"topic", topic,
		"target_service", service,
	)
}

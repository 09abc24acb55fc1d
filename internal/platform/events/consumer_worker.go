package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/platform/transport"
)

// ConsumerWorker polls a Consumer and dispatches each event to the handler.
type ConsumerWorker struct {
	logger   *slog.Logger
	consumer Consumer
	handler  transport.Handler
	interval time.Duration
}

func NewConsumerWorker(logger *slog.Logger, consumer Consumer, handler transport.Handler, interval time.Duration) *ConsumerWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ConsumerWorker{
		logger:   logger,
		consumer: consumer,
		handler:  handler,
		interval: interval,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer iteration failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ConsumerWorker) processOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, 50)
	for _, msg := range msgs {
		ev, decodeErr := rpc.DecodeEvent(msg.Payload)
		if decodeErr != nil {
			w.logger.WarnContext(ctx, "event dropped, undecodable",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "decode",
				"outcome", "failure",
				"topic", msg.Topic,
				"error", decodeErr,
			)
			continue
		}
		if ev.Topic != msg.Topic {
			w.logger.WarnContext(ctx, "event dropped, type does not match topic",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "decode",
				"outcome", "failure",
				"topic", msg.Topic,
				"event_type", ev.Topic,
				"event_id", ev.ID,
			)
			continue
		}
		_ = w.handler.HandleEvent(ctx, ev)
	}
	return err
}

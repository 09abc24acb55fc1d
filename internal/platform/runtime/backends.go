package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teajhaney/shopstack-microservices/internal/platform/config"
	"github.com/teajhaney/shopstack-microservices/internal/platform/events"
	"github.com/teajhaney/shopstack-microservices/internal/platform/registry"
	"github.com/teajhaney/shopstack-microservices/internal/platform/transport"
)

// DialBroker connects the service to RabbitMQ and registers its cleanup.
func (h *Host) DialBroker(ctx context.Context, cfg config.Config) (*transport.AMQPBroker, error) {
	broker, err := transport.DialAMQP(ctx, transport.AMQPConfig{
		URL:      cfg.BrokerURL,
		Source:   cfg.ServiceID,
		Prefetch: cfg.Prefetch,
		Logger:   h.logger,
	})
	if err != nil {
		return nil, err
	}
	h.OnClose(broker.Close)
	return broker, nil
}

// EventEmitter picks the outbound event backend named in cfg. The AMQP
// broker doubles as the emitter for the default backend.
func (h *Host) EventEmitter(cfg config.Config, broker transport.Emitter) (transport.Emitter, error) {
	switch cfg.EventsBackend {
	case config.BackendKafka:
		emitter, err := events.NewKafkaEmitter(cfg.KafkaBrokers, cfg.ServiceID)
		if err != nil {
			return nil, err
		}
		h.OnClose(emitter.Close)
		return emitter, nil
	case config.BackendLog:
		return events.NewLoggingEmitter(h.logger), nil
	case config.BackendAMQP:
		return broker, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
	}
}

// ConsumeKafkaEvents starts a consumer worker for the registry's topics when
// events travel over Kafka. With AMQP they arrive on the service queue.
func (h *Host) ConsumeKafkaEvents(cfg config.Config, service string, reg *registry.Registry) error {
	if cfg.EventsBackend != config.BackendKafka {
		return nil
	}
	topics := reg.Topics()
	if len(topics) == 0 {
		return nil
	}
	consumer, err := events.NewKafkaConsumer(events.KafkaConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Service: service,
		Topics:  topics,
	})
	if err != nil {
		return err
	}
	h.OnClose(consumer.Close)
	worker := events.NewConsumerWorker(h.logger, consumer, reg, cfg.ConsumerPollInterval)
	h.AddWorker(worker.Run)
	h.logger.Info("kafka event consumer enabled",
		"operation", "consume",
		"group", events.GroupFor(service),
		"topics", topics,
	)
	return nil
}

// Logger exposes the host logger to bootstrap code.
func (h *Host) Logger() *slog.Logger {
	return h.logger
}

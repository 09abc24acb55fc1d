package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is one record addressed to this service. Topic is the event topic
// with the service prefix already removed.
type Message struct {
	Topic   string
	Payload []byte
}

type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

const defaultReadWindow = 250 * time.Millisecond

// GroupFor is the consumer group shared by every replica of service.
func GroupFor(service string) string {
	return service + "-events"
}

type KafkaConsumerConfig struct {
	Brokers []string
	Service string
	// Topics are event topics such as product.created, not Kafka topics.
	Topics []string
	// ReadWindow bounds how long Poll waits for the next record.
	ReadWindow time.Duration
}

// KafkaConsumer reads the <service>.<topic> topics written by KafkaEmitter.
type KafkaConsumer struct {
	service string
	reader  messageReader
	window  time.Duration
}

func NewKafkaConsumer(cfg KafkaConsumerConfig) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if cfg.Service == "" {
		return nil, fmt.Errorf("kafka consumer requires a service name")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one topic")
	}
	kafkaTopics := make([]string, 0, len(cfg.Topics))
	for _, t := range cfg.Topics {
		kafkaTopics = append(kafkaTopics, TopicFor(cfg.Service, t))
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     GroupFor(cfg.Service),
		GroupTopics: kafkaTopics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return newKafkaConsumer(cfg.Service, reader, cfg.ReadWindow), nil
}

func newKafkaConsumer(service string, reader messageReader, window time.Duration) *KafkaConsumer {
	if window <= 0 {
		window = defaultReadWindow
	}
	return &KafkaConsumer{service: service, reader: reader, window: window}
}

// Poll returns up to max messages. It stops early, without error, once a
// read window passes with nothing to read. Records on topics that do not
// belong to the service are skipped.
func (c *KafkaConsumer) Poll(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	prefix := c.service + "."
	out := make([]Message, 0, max)
	for len(out) < max {
		readCtx, cancel := context.WithTimeout(ctx, c.window)
		msg, err := c.reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return out, nil
			}
			return out, err
		}
		topic, ok := strings.CutPrefix(msg.Topic, prefix)
		if !ok || topic == "" {
			continue
		}
		out = append(out, Message{Topic: topic, Payload: msg.Value})
	}
	return out, nil
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

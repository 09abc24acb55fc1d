package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
)

// TopicFor is the Kafka topic carrying topic to service.
func TopicFor(service, topic string) string {
	return service + "." + topic
}

type partitioned interface {
	PartitionKey() string
}

// KafkaEmitter writes CloudEvents to one Kafka topic per service and event.
type KafkaEmitter struct {
	brokers []string
	source  string
	writer  *kafka.Writer
}

func NewKafkaEmitter(brokers []string, source string) (*KafkaEmitter, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka emitter requires at least one broker")
	}
	return &KafkaEmitter{
		brokers: brokers,
		source:  source,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Connect checks that the first broker accepts connections.
func (e *KafkaEmitter) Connect(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", e.brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	return conn.Close()
}

func (e *KafkaEmitter) Emit(ctx context.Context, service, topic string, payload any) error {
	raw, err := rpc.EncodeEvent(e.source, topic, payload)
	if err != nil {
		return err
	}
	var key []byte
	if p, ok := payload.(partitioned); ok {
		key = []byte(p.PartitionKey())
	}
	return e.writer.WriteMessages(ctx, kafka.Message{
		Topic: TopicFor(service, topic),
		Key:   key,
		Value: raw,
		Time:  time.Now().UTC(),
	})
}

func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}

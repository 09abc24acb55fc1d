package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/platform/transport"
)

type emitted struct {
	service string
	topic   string
}

type fakeEmitter struct {
	mu       sync.Mutex
	failFor  string
	sent     []emitted
	connects int
}

func (f *fakeEmitter) Connect(context.Context) error {
	f.connects++
	return errors.New("broker unreachable")
}

func (f *fakeEmitter) Emit(_ context.Context, service, topic string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, emitted{service: service, topic: topic})
	if service == f.failFor {
		return errors.New("channel closed")
	}
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testRoutes = Routes{
	"product.created": {"search"},
	"product.deleted": {"search", "media"},
}

func TestPublishAttemptsEveryRouteDespiteFailure(t *testing.T) {
	t.Parallel()

	emitter := &fakeEmitter{failFor: "search"}
	pub := NewPublisher(emitter, testRoutes, quietLogger())
	pub.Connect(context.Background())
	pub.Publish(context.Background(), "product.deleted", map[string]string{"productId": "p-1"})

	if emitter.connects != 1 {
		t.Fatalf("expected one connect attempt, got %d", emitter.connects)
	}
	if len(emitter.sent) != 2 || emitter.sent[1].service != "media" {
		t.Fatalf("expected search and media attempts, got %+v", emitter.sent)
	}
}

func TestPublishUnroutedTopicIsIgnored(t *testing.T) {
	t.Parallel()

	emitter := &fakeEmitter{}
	NewPublisher(emitter, testRoutes, quietLogger()).Publish(context.Background(), "product.archived", nil)
	if len(emitter.sent) != 0 {
		t.Fatalf("expected no emits, got %+v", emitter.sent)
	}
}

func TestPublisherOverMemoryBrokerReachesSubscribers(t *testing.T) {
	t.Parallel()

	broker := transport.NewMemoryBroker(quietLogger())
	search := &recordingHandler{}
	media := &recordingHandler{}
	broker.Bind(transport.QueueName("search"), search)
	broker.Bind(transport.QueueName("media"), media)

	pub := NewPublisher(broker.Client("catalog"), testRoutes, quietLogger())
	pub.Publish(context.Background(), "product.deleted", map[string]string{"productId": "p-1"})
	broker.Drain()

	if search.count() != 1 || media.count() != 1 {
		t.Fatalf("expected one delivery each, got search=%d media=%d", search.count(), media.count())
	}
}

type recordingHandler struct {
	mu     sync.Mutex
	events []rpc.Event
}

func (h *recordingHandler) HandleRequest(context.Context, rpc.Request) rpc.Reply {
	return rpc.ToReply(rpc.NotFound("no requests here"))
}

func (h *recordingHandler) HandleEvent(_ context.Context, ev rpc.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

type fakeConsumer struct {
	batches [][]Message
}

func (c *fakeConsumer) Poll(context.Context, int) ([]Message, error) {
	if len(c.batches) == 0 {
		return nil, nil
	}
	next := c.batches[0]
	c.batches = c.batches[1:]
	return next, nil
}

func TestConsumerWorkerDispatchesDecodedEvents(t *testing.T) {
	t.Parallel()

	good, err := rpc.EncodeEvent("catalog", "product.created", map[string]string{"productId": "p-1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	consumer := &fakeConsumer{batches: [][]Message{{
		{Topic: "product.created", Payload: good},
		{Topic: "product.created", Payload: []byte("not a cloudevent")},
		{Topic: "product.deleted", Payload: good},
	}}}
	handler := &recordingHandler{}
	worker := NewConsumerWorker(quietLogger(), consumer, handler, 0)

	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if handler.count() != 1 || handler.events[0].Topic != "product.created" {
		t.Fatalf("expected only the matching decoded event, got %+v", handler.events)
	}
}

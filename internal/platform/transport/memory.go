package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
)

// MemoryBroker is an in-process broker with the same delivery semantics as
// the AMQP broker: requests wait for a consumer until they time out, events
// stay queued until a consumer binds, and every delivery runs on its own
// goroutine.
type MemoryBroker struct {
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string][][]byte
	closed   bool
	inflight sync.WaitGroup
}

func NewMemoryBroker(logger *slog.Logger) *MemoryBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBroker{
		logger:   logger.With("module", "transport.memory", "layer", "platform"),
		handlers: make(map[string]Handler),
		pending:  make(map[string][][]byte),
	}
}

// Bind attaches h to queue and flushes queued events to it.
func (b *MemoryBroker) Bind(queue string, h Handler) {
	b.mu.Lock()
	b.handlers[queue] = h
	queued := b.pending[queue]
	delete(b.pending, queue)
	b.mu.Unlock()

	for _, raw := range queued {
		b.deliverEvent(queue, h, raw)
	}
}

func (b *MemoryBroker) Unbind(queue string) {
	b.mu.Lock()
	delete(b.handlers, queue)
	b.mu.Unlock()
}

// Serve binds h and blocks until ctx is done.
func (b *MemoryBroker) Serve(ctx context.Context, queue string, h Handler) error {
	b.Bind(queue, h)
	<-ctx.Done()
	b.Unbind(queue)
	return nil
}

// Client returns a client that stamps events with source.
func (b *MemoryBroker) Client(source string) Client {
	return &memoryClient{broker: b, source: source}
}

// Drain blocks until every in-flight delivery has finished.
func (b *MemoryBroker) Drain() {
	b.inflight.Wait()
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.inflight.Wait()
	return nil
}

func (b *MemoryBroker) handler(queue string) (Handler, bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.handlers[queue]
	return h, ok, b.closed
}

func (b *MemoryBroker) deliverEvent(queue string, h Handler, raw []byte) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		ev, err := rpc.DecodeEvent(raw)
		if err != nil {
			b.logger.Error("event dropped, undecodable",
				"operation", "deliver_event",
				"outcome", "failure",
				"queue", queue,
				"error", err,
			)
			return
		}
		_ = h.HandleEvent(context.Background(), ev)
	}()
}

type memoryClient struct {
	broker *MemoryBroker
	source string
}

func (c *memoryClient) Call(ctx context.Context, service, pattern string, payload any, timeout time.Duration) (json.RawMessage, error) {
	raw, err := encodePayload(pattern, payload)
	if err != nil {
		return nil, err
	}
	h, bound, closed := c.broker.handler(QueueName(service))
	if closed {
		return nil, closedError()
	}

	timer := time.NewTimer(effectiveTimeout(timeout))
	defer timer.Stop()

	if !bound {
		select {
		case <-timer.C:
			return nil, timeoutError(service, pattern)
		case <-ctx.Done():
			return nil, waitErr(ctx, service, pattern)
		}
	}

	done := make(chan rpc.Reply, 1)
	c.broker.inflight.Add(1)
	go func() {
		defer c.broker.inflight.Done()
		// The callee keeps running after the caller gives up.
		done <- h.HandleRequest(context.WithoutCancel(ctx), rpc.Request{Pattern: pattern, Payload: raw})
	}()

	select {
	case reply := <-done:
		wire, err := json.Marshal(reply)
		if err != nil {
			return nil, rpc.Internal(rpc.GenericInternalMessage).WithCause(fmt.Errorf("encode reply: %w", err))
		}
		var decoded rpc.Reply
		if err := json.Unmarshal(wire, &decoded); err != nil {
			return nil, rpc.Internal(rpc.GenericInternalMessage).WithCause(fmt.Errorf("decode reply: %w", err))
		}
		return decoded.Result()
	case <-timer.C:
		return nil, timeoutError(service, pattern)
	case <-ctx.Done():
		return nil, waitErr(ctx, service, pattern)
	}
}

func (c *memoryClient) Emit(_ context.Context, service, topic string, payload any) error {
	raw, err := rpc.EncodeEvent(c.source, topic, payload)
	if err != nil {
		return err
	}
	queue := QueueName(service)

	c.broker.mu.Lock()
	if c.broker.closed {
		c.broker.mu.Unlock()
		return closedError()
	}
	h, ok := c.broker.handlers[queue]
	if !ok {
		c.broker.pending[queue] = append(c.broker.pending[queue], raw)
		c.broker.mu.Unlock()
		return nil
	}
	c.broker.mu.Unlock()

	c.broker.deliverEvent(queue, h, raw)
	return nil
}

func (c *memoryClient) Close() error {
	return nil
}

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
)

type fakeHandler struct {
	mu      sync.Mutex
	events  []rpc.Event
	block   chan struct{}
	replyFn func(rpc.Request) rpc.Reply
}

func (h *fakeHandler) HandleRequest(_ context.Context, req rpc.Request) rpc.Reply {
	if h.block != nil {
		<-h.block
	}
	return h.replyFn(req)
}

func (h *fakeHandler) HandleEvent(_ context.Context, ev rpc.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return nil
}

func (h *fakeHandler) received() []rpc.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]rpc.Event(nil), h.events...)
}

func TestMemoryCallReturnsReplyData(t *testing.T) {
	t.Parallel()

	broker := NewMemoryBroker(nil)
	broker.Bind(QueueName("catalog"), &fakeHandler{replyFn: func(req rpc.Request) rpc.Reply {
		reply, _ := rpc.NewReply(map[string]string{"pattern": req.Pattern})
		return reply
	}})

	var out map[string]string
	err := CallInto(context.Background(), broker.Client("gateway"), "catalog", "product.get", map[string]string{"id": "x"}, time.Second, &out)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out["pattern"] != "product.get" {
		t.Fatalf("unexpected reply: %v", out)
	}
}

func TestMemoryCallPassesErrorEnvelopeVerbatim(t *testing.T) {
	t.Parallel()

	broker := NewMemoryBroker(nil)
	broker.Bind(QueueName("catalog"), &fakeHandler{replyFn: func(rpc.Request) rpc.Reply {
		return rpc.ToReply(rpc.NotFound("product not found"))
	}})

	_, err := broker.Client("gateway").Call(context.Background(), "catalog", "product.get", nil, time.Second)
	var rpcErr *rpc.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != rpc.CodeNotFound || rpcErr.Message != "product not found" {
		t.Fatalf("expected NOT_FOUND envelope, got %v", err)
	}
}

func TestMemoryCallTimeoutIsDistinguishable(t *testing.T) {
	t.Parallel()

	broker := NewMemoryBroker(nil)
	release := make(chan struct{})
	broker.Bind(QueueName("media"), &fakeHandler{block: release, replyFn: func(rpc.Request) rpc.Reply {
		return rpc.Reply{}
	}})
	defer close(release)

	start := time.Now()
	_, err := broker.Client("gateway").Call(context.Background(), "media", rpc.PatternPing, nil, 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !rpc.IsCode(err, rpc.CodeInternal) {
		t.Fatalf("expected INTERNAL code on timeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("call did not honour its timeout")
	}
}

func TestMemoryCallWithoutConsumerTimesOut(t *testing.T) {
	t.Parallel()

	broker := NewMemoryBroker(nil)
	_, err := broker.Client("gateway").Call(context.Background(), "search", "search.query", nil, 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestMemoryEmitQueuesUntilBound(t *testing.T) {
	t.Parallel()

	broker := NewMemoryBroker(nil)
	client := broker.Client("catalog")
	if err := client.Emit(context.Background(), "search", "product.deleted", map[string]string{"productId": "p-1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	h := &fakeHandler{}
	broker.Bind(QueueName("search"), h)
	broker.Drain()

	got := h.received()
	if len(got) != 1 || got[0].Topic != "product.deleted" || got[0].Source != "catalog" {
		t.Fatalf("unexpected events: %+v", got)
	}
	var payload map[string]string
	if err := json.Unmarshal(got[0].Payload, &payload); err != nil || payload["productId"] != "p-1" {
		t.Fatalf("unexpected payload: %s", got[0].Payload)
	}
}

func TestMemoryClosedBrokerRejectsTraffic(t *testing.T) {
	t.Parallel()

	broker := NewMemoryBroker(nil)
	_ = broker.Close()
	if err := broker.Client("catalog").Emit(context.Background(), "search", "product.created", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

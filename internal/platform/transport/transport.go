// Package transport moves requests, replies and events between services.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
)

// DefaultTimeout applies when a caller passes a non-positive timeout.
const DefaultTimeout = 5 * time.Second

const (
	kindRequest = "request"
	kindEvent   = "event"
)

var (
	ErrTimeout = errors.New("transport: call timed out")
	ErrClosed  = errors.New("transport: client closed")
)

// Caller performs one request/reply round trip. It never retries.
type Caller interface {
	Call(ctx context.Context, service, pattern string, payload any, timeout time.Duration) (json.RawMessage, error)
}

// Emitter sends a fire-and-forget event to one service.
type Emitter interface {
	Emit(ctx context.Context, service, topic string, payload any) error
}

type Client interface {
	Caller
	Emitter
	Close() error
}

// Handler receives decoded traffic from a Server. The registry implements it.
type Handler interface {
	HandleRequest(ctx context.Context, req rpc.Request) rpc.Reply
	HandleEvent(ctx context.Context, ev rpc.Event) error
}

// Server consumes a queue until ctx is done.
type Server interface {
	Serve(ctx context.Context, queue string, h Handler) error
}

// QueueName is the queue a service consumes.
func QueueName(service string) string {
	return service + "_queue"
}

// CallInto performs a call and decodes the reply data into out.
func CallInto(ctx context.Context, c Caller, service, pattern string, payload any, timeout time.Duration, out any) error {
	raw, err := c.Call(ctx, service, pattern, payload, timeout)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return rpc.Internal(rpc.GenericInternalMessage).WithCause(fmt.Errorf("decode %s reply: %w", pattern, err))
	}
	return nil
}

func effectiveTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}

func timeoutError(service, pattern string) error {
	return rpc.Internal("downstream timeout", map[string]string{
		"service": service,
		"pattern": pattern,
	}).WithCause(ErrTimeout)
}

func closedError() error {
	return rpc.Internal("transport unavailable").WithCause(ErrClosed)
}

// waitErr converts a finished caller context into the call's error.
func waitErr(ctx context.Context, service, pattern string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutError(service, pattern)
	}
	return rpc.Internal("call canceled").WithCause(ctx.Err())
}

func encodePayload(pattern string, payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, rpc.Internal(rpc.GenericInternalMessage).WithCause(fmt.Errorf("encode %s payload: %w", pattern, err))
	}
	return raw, nil
}

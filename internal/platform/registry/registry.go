// Package registry is the explicit routing table from request patterns and
// event topics to business handlers. Tables are built once at startup.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/platform/validate"
)

type requestFunc func(ctx context.Context, payload json.RawMessage) (any, error)

type eventFunc func(ctx context.Context, payload json.RawMessage) error

type subscriber struct {
	name string
	fn   eventFunc
}

// Registry dispatches inbound requests and events for one service.
type Registry struct {
	service  string
	logger   *slog.Logger
	requests map[string]requestFunc
	events   map[string][]subscriber
	nowFn    func() time.Time
}

func New(service string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		service:  service,
		logger:   logger.With("module", "registry", "layer", "platform"),
		requests: make(map[string]requestFunc),
		events:   make(map[string][]subscriber),
		nowFn:    time.Now,
	}
	Handle(r, rpc.PatternPing, func(_ context.Context, _ PingPayload) (any, error) {
		return rpc.Pong{
			Status:      "Ok",
			ServiceName: r.service,
			Timestamp:   r.nowFn().UTC().Format(time.RFC3339),
		}, nil
	})
	return r
}

// PingPayload is the empty service.ping payload.
type PingPayload struct{}

func (PingPayload) Rules() validate.Set { return nil }

// Handle registers the single handler for a request pattern. Registering a
// pattern twice is a programming error and panics.
func Handle[T validate.Subject](r *Registry, pattern string, fn func(ctx context.Context, payload T) (any, error)) {
	if _, exists := r.requests[pattern]; exists {
		panic(fmt.Sprintf("registry: duplicate handler for pattern %q", pattern))
	}
	r.requests[pattern] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		payload, err := decode[T](raw, true)
		if err != nil {
			return nil, err
		}
		return fn(ctx, payload)
	}
}

// Subscribe adds a handler for an event topic. Any number of handlers may
// share a topic; name identifies the handler in logs.
func Subscribe[T validate.Subject](r *Registry, topic, name string, fn func(ctx context.Context, payload T) error) {
	r.events[topic] = append(r.events[topic], subscriber{
		name: name,
		fn: func(ctx context.Context, raw json.RawMessage) error {
			payload, err := decode[T](raw, false)
			if err != nil {
				return err
			}
			return fn(ctx, payload)
		},
	})
}

func decode[T validate.Subject](raw json.RawMessage, strict bool) (T, error) {
	var payload T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&payload); err != nil {
		return payload, rpc.ValidationError("invalid payload", map[string]string{"error": err.Error()})
	}
	if err := payload.Rules().Err(); err != nil {
		return payload, err
	}
	return payload, nil
}

// Patterns lists the registered request patterns.
func (r *Registry) Patterns() []string {
	out := make([]string, 0, len(r.requests))
	for p := range r.requests {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Topics lists the topics with at least one subscriber.
func (r *Registry) Topics() []string {
	out := make([]string, 0, len(r.events))
	for t := range r.events {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HandleRequest runs the handler for req.Pattern and always produces a
// reply; faults are coerced so nothing but an rpc.Error leaves the service.
func (r *Registry) HandleRequest(ctx context.Context, req rpc.Request) (reply rpc.Reply) {
	start := time.Now()
	fn, ok := r.requests[req.Pattern]
	if !ok {
		err := rpc.NotFound(fmt.Sprintf("no handler for pattern %s", req.Pattern))
		r.logFailure(ctx, "request", req.Pattern, "", err)
		return rpc.ToReply(err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "handler panic recovered",
				"operation", "handle_request",
				"outcome", "failure",
				"pattern", req.Pattern,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			reply = rpc.ToReply(rpc.Internal(rpc.GenericInternalMessage))
		}
	}()

	out, err := fn(ctx, req.Payload)
	if err != nil {
		r.logFailure(ctx, "request", req.Pattern, "", err)
		return rpc.ToReply(err)
	}
	reply, err = rpc.NewReply(out)
	if err != nil {
		r.logFailure(ctx, "request", req.Pattern, "", err)
		return rpc.ToReply(err)
	}
	r.logger.DebugContext(ctx, "request handled",
		"operation", "handle_request",
		"outcome", "success",
		"pattern", req.Pattern,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return reply
}

// HandleEvent runs every subscriber for ev.Topic. A failing or panicking
// subscriber is logged and does not stop its siblings. The joined error is
// returned for observability only.
func (r *Registry) HandleEvent(ctx context.Context, ev rpc.Event) error {
	subs := r.events[ev.Topic]
	if len(subs) == 0 {
		r.logger.WarnContext(ctx, "event dropped, no subscribers",
			"operation", "handle_event",
			"outcome", "ignored",
			"topic", ev.Topic,
			"event_id", ev.ID,
		)
		return nil
	}
	var errs []error
	for _, sub := range subs {
		if err := r.runSubscriber(ctx, ev, sub); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) runSubscriber(ctx context.Context, ev rpc.Event, sub subscriber) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "subscriber panic recovered",
				"operation", "handle_event",
				"outcome", "failure",
				"topic", ev.Topic,
				"subscriber", sub.name,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			err = rpc.Internal(rpc.GenericInternalMessage)
		}
	}()
	if err := sub.fn(ctx, ev.Payload); err != nil {
		r.logFailure(ctx, "event", ev.Topic, sub.name, err)
		return err
	}
	return nil
}

func (r *Registry) logFailure(ctx context.Context, kind, name, subscriberName string, err error) {
	coerced := rpc.Coerce(err)
	fields := []any{
		"operation", "handle_" + kind,
		"outcome", "failure",
		"name", name,
		"error_code", string(coerced.Code),
		"error", err.Error(),
	}
	if subscriberName != "" {
		fields = append(fields, "subscriber", subscriberName)
	}
	if coerced.Code == rpc.CodeInternal {
		r.logger.ErrorContext(ctx, kind+" handler failed", fields...)
		return
	}
	r.logger.WarnContext(ctx, kind+" handler failed", fields...)
}

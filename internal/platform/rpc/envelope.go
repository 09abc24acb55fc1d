package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// PatternPing is answered by every service.
const PatternPing = "service.ping"

// Request is routed to exactly one handler registered for Pattern.
type Request struct {
	Pattern string          `json:"pattern"`
	Payload json.RawMessage `json:"payload"`
}

// Reply carries either Data or Error, never both.
type Reply struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// Result unpacks the reply into a value or an *Error.
func (r Reply) Result() (json.RawMessage, error) {
	if r.Error != nil {
		return nil, Coerce(r.Error)
	}
	return r.Data, nil
}

// NewReply marshals v into a successful reply.
func NewReply(v any) (Reply, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal reply: %w", err)
	}
	return Reply{Data: raw}, nil
}

// Event is delivered to every handler subscribed to Topic.
type Event struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Source  string          `json:"source"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// Pong is the reply to service.ping.
type Pong struct {
	Status      string `json:"status"`
	ServiceName string `json:"serviceName"`
	Timestamp   string `json:"timestamp"`
}

// EncodeEvent renders an event as a structured-mode CloudEvent.
func EncodeEvent(source, topic string, payload any) ([]byte, error) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(source)
	e.SetType(topic)
	e.SetTime(time.Now().UTC())
	if err := e.SetData(cloudevents.ApplicationJSON, payload); err != nil {
		return nil, fmt.Errorf("set event data: %w", err)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return raw, nil
}

// DecodeEvent parses a structured-mode CloudEvent.
func DecodeEvent(raw []byte) (Event, error) {
	var e cloudevents.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, fmt.Errorf("invalid event: %w", err)
	}
	return Event{
		ID:      e.ID(),
		Topic:   e.Type(),
		Source:  e.Source(),
		Time:    e.Time(),
		Payload: json.RawMessage(e.Data()),
	}, nil
}

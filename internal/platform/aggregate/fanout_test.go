package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
)

func pong(name string) Call {
	return Call{Name: name, Do: func(context.Context) (json.RawMessage, error) {
		return json.RawMessage(`{"status":"Ok","serviceName":"` + name + `"}`), nil
	}}
}

func TestOneHangingCallDoesNotSinkTheOthers(t *testing.T) {
	t.Parallel()

	hang := make(chan struct{})
	defer close(hang)
	slow := Call{Name: "media", Do: func(context.Context) (json.RawMessage, error) {
		<-hang
		return nil, nil
	}}

	start := time.Now()
	res := Fanout(context.Background(), 100*time.Millisecond, pong("catalog"), slow, pong("search"))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("fanout exceeded its timeout: %v", elapsed)
	}
	if res.OK || res.Status != StatusError {
		t.Fatalf("expected composite Error, got %+v", res)
	}
	if res.Outcomes["media"].Status != StatusError {
		t.Fatalf("expected media Error, got %+v", res.Outcomes["media"])
	}
	for _, name := range []string{"catalog", "search"} {
		out := res.Outcomes[name]
		if out.Status != StatusOk {
			t.Fatalf("%s: expected Ok, got %+v", name, out)
		}
		var body rpc.Pong
		if err := json.Unmarshal(out.Data, &body); err != nil || body.ServiceName != name {
			t.Fatalf("%s: payload not intact: %s", name, out.Data)
		}
	}
}

func TestAllOkIsOk(t *testing.T) {
	t.Parallel()

	res := Fanout(context.Background(), time.Second, pong("catalog"), pong("search"))
	if !res.OK || res.Status != StatusOk || len(res.Outcomes) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCallErrorIsCoerced(t *testing.T) {
	t.Parallel()

	failing := Call{Name: "search", Do: func(context.Context) (json.RawMessage, error) {
		return nil, errors.New("socket closed")
	}}
	res := Fanout(context.Background(), time.Second, failing)
	out := res.Outcomes["search"]
	if out.Error == nil || out.Error.Message != rpc.GenericInternalMessage {
		t.Fatalf("expected generic internal error, got %+v", out)
	}
}

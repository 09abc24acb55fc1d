// Package aggregate runs independent downstream calls concurrently and
// folds their outcomes into one composite result.
package aggregate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
)

const (
	StatusOk    = "Ok"
	StatusError = "Error"
)

// Call is one named downstream operation.
type Call struct {
	Name string
	Do   func(ctx context.Context) (json.RawMessage, error)
}

type Outcome struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  *rpc.Error      `json:"error,omitempty"`
}

type Result struct {
	OK       bool               `json:"-"`
	Status   string             `json:"status"`
	Outcomes map[string]Outcome `json:"services"`
}

// Fanout runs every call with its own timeout. A failing or hanging call
// does not cancel the others, and Fanout returns once each call has either
// finished or reached its deadline.
func Fanout(ctx context.Context, timeout time.Duration, calls ...Call) Result {
	var (
		mu       sync.Mutex
		outcomes = make(map[string]Outcome, len(calls))
		g        errgroup.Group
	)
	for _, call := range calls {
		g.Go(func() error {
			out := run(ctx, timeout, call)
			mu.Lock()
			outcomes[call.Name] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result := Result{OK: true, Status: StatusOk, Outcomes: outcomes}
	for _, out := range outcomes {
		if out.Status != StatusOk {
			result.OK = false
			result.Status = StatusError
			break
		}
	}
	return result
}

func run(ctx context.Context, timeout time.Duration, call Call) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		data json.RawMessage
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		data, err := call.Do(callCtx)
		done <- answer{data: data, err: err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			return Outcome{Status: StatusError, Error: rpc.Coerce(a.err)}
		}
		return Outcome{Status: StatusOk, Data: a.data}
	case <-callCtx.Done():
		return Outcome{Status: StatusError, Error: rpc.Internal("downstream timeout", map[string]string{"service": call.Name})}
	}
}

package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestHTTPStatusTable(t *testing.T) {
	t.Parallel()

	cases := map[Code]int{
		CodeBadRequest:      http.StatusBadRequest,
		CodeValidationError: http.StatusBadRequest,
		CodeUnauthorized:    http.StatusUnauthorized,
		CodeForbidden:       http.StatusForbidden,
		CodeNotFound:        http.StatusNotFound,
		CodeInternal:        http.StatusInternalServerError,
		Code("TEAPOT"):      http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestRawFaultNeverCrossesHTTPBoundary(t *testing.T) {
	t.Parallel()

	raw := errors.New("pq: connection refused at 10.0.0.4:5432 (stack: main.go:42)")
	out := ToHTTP(raw)
	if out.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", out.Status)
	}
	body, err := json.Marshal(out.Body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	if strings.Contains(string(body), "10.0.0.4") || strings.Contains(string(body), "stack") {
		t.Fatalf("internal detail leaked: %s", body)
	}
	if out.Body.Message != GenericInternalMessage {
		t.Fatalf("expected generic message, got %q", out.Body.Message)
	}
	if !errors.Is(out.Body, raw) {
		t.Fatalf("expected raw fault to stay reachable locally")
	}
}

func TestCoerceKeepsShapedErrors(t *testing.T) {
	t.Parallel()

	shaped := NotFound("product not found")
	wrapped := errors.Join(errors.New("context"), shaped)
	got := Coerce(wrapped)
	if got.Code != CodeNotFound || got.Message != "product not found" {
		t.Fatalf("unexpected coercion: %+v", got)
	}
	if Coerce(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	unknown := &Error{Code: "WEIRD", Message: "odd"}
	if Coerce(unknown).Code != CodeInternal {
		t.Fatalf("unknown codes must become INTERNAL")
	}
}

func TestQueueReplyCarriesEnvelopeVerbatim(t *testing.T) {
	t.Parallel()

	reply := ToBoundary(ValidationError("validation failed", []string{"name"}), BoundaryQueue).(Reply)
	raw, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	var decoded Reply
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	_, err = decoded.Result()
	if !IsCode(err, CodeValidationError) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestEventRoundTripThroughCloudEvents(t *testing.T) {
	t.Parallel()

	raw, err := EncodeEvent("catalog", "product.deleted", map[string]string{"productId": "p-1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ev, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Topic != "product.deleted" || ev.Source != "catalog" || ev.ID == "" {
		t.Fatalf("unexpected event attributes: %+v", ev)
	}
	var payload map[string]string
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["productId"] != "p-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestFromHTTPFallsBackOnStatus(t *testing.T) {
	t.Parallel()

	if e := FromHTTP(http.StatusForbidden, []byte("nope")); e.Code != CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %s", e.Code)
	}
	if e := FromHTTP(http.StatusNotFound, []byte(`{"code":"NOT_FOUND","message":"gone"}`)); e.Message != "gone" {
		t.Fatalf("expected decoded message, got %q", e.Message)
	}
}

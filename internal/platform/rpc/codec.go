package rpc

import (
	"encoding/json"
	"net/http"
)

// Boundary names the transport an error is being re-expressed for.
type Boundary int

const (
	BoundaryHTTP Boundary = iota
	BoundaryQueue
)

// HTTPError is the HTTP representation of an Error: a status code plus the
// {code, message, details?} body.
type HTTPError struct {
	Status int
	Body   *Error
}

// HTTPStatus maps a code to its HTTP status. Unknown codes are 500.
func HTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidationError:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTP coerces err and renders it for an HTTP caller.
func ToHTTP(err error) HTTPError {
	e := Coerce(err)
	return HTTPError{Status: HTTPStatus(e.Code), Body: e}
}

// ToReply coerces err and wraps it in a queue reply.
func ToReply(err error) Reply {
	return Reply{Error: Coerce(err)}
}

// ToBoundary returns HTTPError for BoundaryHTTP and Reply for BoundaryQueue.
func ToBoundary(err error, boundary Boundary) any {
	switch boundary {
	case BoundaryHTTP:
		return ToHTTP(err)
	default:
		return ToReply(err)
	}
}

// FromHTTP rebuilds an Error from a status and response body, for clients
// that sit on the other side of the gateway.
func FromHTTP(status int, body []byte) *Error {
	var e Error
	if err := json.Unmarshal(body, &e); err == nil && e.Code.Known() {
		return &e
	}
	switch status {
	case http.StatusBadRequest:
		return BadRequest(http.StatusText(status))
	case http.StatusUnauthorized:
		return Unauthorized(http.StatusText(status))
	case http.StatusForbidden:
		return Forbidden(http.StatusText(status))
	case http.StatusNotFound:
		return NotFound(http.StatusText(status))
	default:
		return Internal("Request failed")
	}
}

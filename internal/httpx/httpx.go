// Package httpx provides helper functions for creating HTTP responses.
// Every response carries the same envelope: success, data, message, error.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/cardpath/dispute-resolution-portal/internal/fault"
)

// Envelope is the uniform response body for all endpoints.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps data in a success envelope.
func OK(status int, data any, message string) (events.APIGatewayV2HTTPResponse, error) {
	return respond(status, Envelope{Success: true, Data: data, Message: message})
}

// Fail wraps an error kind and message in a failure envelope.
func Fail(status int, errKind, message string) (events.APIGatewayV2HTTPResponse, error) {
	return respond(status, Envelope{Success: false, Error: errKind, Message: message})
}

// FailErr maps a classified error onto the envelope and an HTTP status.
func FailErr(err error) (events.APIGatewayV2HTTPResponse, error) {
	kind := fault.KindOf(err)
	return Fail(StatusForKind(kind), string(kind), err.Error())
}

// StatusForKind maps the core error taxonomy onto HTTP statuses.
func StatusForKind(kind fault.Kind) int {
	switch kind {
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindInvalidTransactionState:
		return http.StatusUnprocessableEntity
	case fault.KindDuplicateCase:
		return http.StatusConflict
	case fault.KindThrottleExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respond(status int, env Envelope) (events.APIGatewayV2HTTPResponse, error) {
	b, _ := json.Marshal(env)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: string(b),
	}, nil
}

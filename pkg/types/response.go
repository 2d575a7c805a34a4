// Package types holds the JSON shapes every HTTP response is wrapped in.
package types

// SuccessEnvelope renders as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorEnvelope renders as {"error": {"code", "message", "details"}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// APIError is the client-visible part of a failure. Details is omitted when nil.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

package models

import "time"

// Envelope is the JSON body of every API response
type Envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorBody is the outward shape of an AppError
type ErrorBody struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitzero"`
	Retryable bool      `json:"retryable"`
	RequestID string    `json:"request_id,omitzero"`
}

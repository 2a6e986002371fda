// Package providers implements the two Provider dialects spec.md §6
// requires (OpenAI-style and Anthropic-style), both satisfying
// agent.Provider with a single non-streaming round trip.
//
// Grounded on the teacher's internal/agent/providers/errors.go
// FailoverReason/ClassifyError machinery, narrowed to the two buckets
// spec.md §7 actually needs: client_error (4xx, terminal) and
// transport_error (5xx/network, retryable-by-the-queue).
package providers

import (
	"errors"
	"fmt"
	"strings"
)

// Reason classifies a Provider-side failure.
type Reason string

const (
	ReasonClientError    Reason = "client_error"
	ReasonTransportError Reason = "transport_error"
)

// ProviderError is a structured, classified failure from a Provider
// call. It never leaks a provider SDK's concrete error type to
// callers outside this package.
type ProviderError struct {
	Reason   Reason
	Provider string
	Model    string
	Status   int
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Provider, e.Reason, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %v", e.Provider, e.Reason, e.Cause)
	}
	return fmt.Sprintf("[%s:%s]", e.Provider, e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// ClassifyStatus maps an HTTP status code to a Reason: 4xx is a
// client_error (terminal, never retried); anything else (5xx, 0 for
// transport-level failures) is a transport_error.
func ClassifyStatus(status int) Reason {
	if status >= 400 && status < 500 {
		return ReasonClientError
	}
	return ReasonTransportError
}

// ClassifyError builds a ProviderError from a raw SDK error and an
// HTTP status (0 when the failure never reached the wire, e.g. a
// dial error), tagging the provider/model it came from.
func ClassifyError(providerName, model string, status int, err error) *ProviderError {
	if err == nil {
		return nil
	}
	reason := ClassifyStatus(status)
	if reason == ReasonTransportError && looksLikeClientError(err) {
		reason = ReasonClientError
	}
	return &ProviderError{
		Reason:   reason,
		Provider: providerName,
		Model:    model,
		Status:   status,
		Message:  err.Error(),
		Cause:    err,
	}
}

// looksLikeClientError covers SDKs that surface 4xx failures without
// a structured status code reaching this layer (e.g. invalid_request
// / auth errors returned as plain errors).
func looksLikeClientError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"invalid request", "invalid_request", "unauthorized", "401", "403", "bad request", "400"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsProviderError reports whether err is or wraps a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
)

// Error codes the server attaches to failed API calls. The server sends
// many more; these are the ones the client reacts to specifically.
const (
	// CodeBadEventQueueID means the event queue was garbage collected
	// server-side. The client must register a fresh queue.
	CodeBadEventQueueID = "BAD_EVENT_QUEUE_ID"

	// CodeRateLimitHit means the server throttled the request. The
	// response carries a retry-after hint.
	CodeRateLimitHit = "RATE_LIMIT_HIT"
)

// APIError is a structured error response from the chat server. The
// server reports failures as JSON bodies with a result of "error", a
// human-readable msg, and usually a machine-readable code.
type APIError struct {
	// Code is the server's machine-readable error code, such as
	// "BAD_EVENT_QUEUE_ID". May be empty for older servers.
	Code string

	// Message is the server's human-readable description.
	Message string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// RetryAfter is the server's throttle hint in seconds, set only
	// for rate limit errors.
	RetryAfter float64
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("messaging: server error %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("messaging: server error (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsQueueExpired reports whether err is the server telling us our event
// queue no longer exists.
func IsQueueExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeBadEventQueueID
}

// IsRateLimited reports whether err is a server throttle response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeRateLimitHit
}

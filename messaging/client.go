// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roostbot/roost/lib/netutil"
	"github.com/roostbot/roost/lib/secret"
)

// ClientConfig carries the connection parameters for a Client.
type ClientConfig struct {
	// ServerURL is the base URL of the chat server, for example
	// "https://chat.example.com". Required.
	ServerURL string

	// Email is the bot account's login email. Required.
	Email string

	// APIKey holds the bot account's API key. Required. The client
	// borrows the buffer; the caller keeps ownership and closes it
	// after the client is no longer in use.
	APIKey *secret.Buffer

	// HTTPClient is used for all requests. Defaults to a client with
	// a 90 second timeout, long enough for the server's long-poll
	// hold time plus margin.
	HTTPClient *http.Client

	// Logger for request-level diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Client is a REST client for the chat server. Safe for concurrent use.
type Client struct {
	baseURL    string
	email      string
	apiKey     *secret.Buffer
	httpClient *http.Client
	logger     *slog.Logger
}

// defaultHTTPTimeout must exceed the server's long-poll hold time
// (typically 60 seconds) or every idle poll would surface as an error.
const defaultHTTPTimeout = 90 * time.Second

func NewClient(config ClientConfig) (*Client, error) {
	if config.ServerURL == "" {
		return nil, fmt.Errorf("messaging: ClientConfig.ServerURL is required")
	}
	if config.Email == "" {
		return nil, fmt.Errorf("messaging: ClientConfig.Email is required")
	}
	if config.APIKey == nil {
		return nil, fmt.Errorf("messaging: ClientConfig.APIKey is required")
	}
	if _, err := url.Parse(config.ServerURL); err != nil {
		return nil, fmt.Errorf("messaging: invalid server URL %q: %w", config.ServerURL, err)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(config.ServerURL, "/") + "/api/v1",
		email:      config.Email,
		apiKey:     config.APIKey,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}, nil
}

// CloseIdleConnections drops the client's idle connection pool. The
// event source calls this after repeated transport failures, in case
// the failures come from poisoned keep-alive connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// apiResponse is the envelope every server response carries. Result is
// "success" or "error"; Code and Msg are set on errors.
type apiResponse struct {
	Result     string  `json:"result"`
	Msg        string  `json:"msg"`
	Code       string  `json:"code"`
	RetryAfter float64 `json:"retry-after"`
}

// doRequest performs one authenticated API call and returns the raw
// response body. Parameters travel as a query string for GET and DELETE
// and as a form body otherwise. A response whose envelope reports an
// error becomes an *APIError regardless of HTTP status.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	var body *strings.Reader
	switch method {
	case http.MethodGet, http.MethodDelete:
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
		body = strings.NewReader("")
	default:
		body = strings.NewReader(params.Encode())
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("messaging: building %s %s request: %w", method, path, err)
	}
	request.SetBasicAuth(c.email, c.apiKey.String())
	if method != http.MethodGet && method != http.MethodDelete {
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	data, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("messaging: reading %s %s response: %w", method, path, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		if response.StatusCode >= 400 {
			return nil, &APIError{
				StatusCode: response.StatusCode,
				Message:    strings.TrimSpace(string(data)),
			}
		}
		return nil, fmt.Errorf("messaging: decoding %s %s response: %w", method, path, err)
	}
	if envelope.Result == "error" || response.StatusCode >= 400 {
		return nil, &APIError{
			Code:       envelope.Code,
			Message:    envelope.Msg,
			StatusCode: response.StatusCode,
			RetryAfter: envelope.RetryAfter,
		}
	}
	return data, nil
}

// SendStreamMessage posts a message to a stream under the given topic
// and returns the new message's ID.
func (c *Client) SendStreamMessage(ctx context.Context, stream, topic, content string) (int64, error) {
	params := url.Values{}
	params.Set("type", MessageTypeStream)
	params.Set("to", stream)
	params.Set("subject", topic)
	params.Set("content", content)
	return c.sendMessage(ctx, params)
}

// SendPrivateMessage sends a direct message to one or more users,
// identified by email, and returns the new message's ID.
func (c *Client) SendPrivateMessage(ctx context.Context, recipients []string, content string) (int64, error) {
	to, err := json.Marshal(recipients)
	if err != nil {
		return 0, fmt.Errorf("messaging: encoding recipients: %w", err)
	}
	params := url.Values{}
	params.Set("type", MessageTypePrivate)
	params.Set("to", string(to))
	params.Set("content", content)
	return c.sendMessage(ctx, params)
}

func (c *Client) sendMessage(ctx context.Context, params url.Values) (int64, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/messages", params)
	if err != nil {
		return 0, err
	}
	var result struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return 0, fmt.Errorf("messaging: decoding send response: %w", err)
	}
	return result.ID, nil
}

// GetOwnProfile fetches the authenticated account's profile. Bots use
// this at startup to learn their own user ID so they can ignore their
// own messages.
func (c *Client) GetOwnProfile(ctx context.Context) (*Profile, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/users/me", nil)
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("messaging: decoding profile: %w", err)
	}
	return &profile, nil
}

// RegisterQueue creates a server-side event queue delivering the given
// event types, optionally narrowed to matching messages.
func (c *Client) RegisterQueue(ctx context.Context, eventTypes []string, narrow Narrow) (*QueueRegistration, error) {
	params := url.Values{}
	if len(eventTypes) > 0 {
		encoded, err := json.Marshal(eventTypes)
		if err != nil {
			return nil, fmt.Errorf("messaging: encoding event types: %w", err)
		}
		params.Set("event_types", string(encoded))
	}
	if len(narrow) > 0 {
		encoded, err := json.Marshal(narrow)
		if err != nil {
			return nil, fmt.Errorf("messaging: encoding narrow: %w", err)
		}
		params.Set("narrow", string(encoded))
	}
	data, err := c.doRequest(ctx, http.MethodPost, "/register", params)
	if err != nil {
		return nil, err
	}
	var registration QueueRegistration
	if err := json.Unmarshal(data, &registration); err != nil {
		return nil, fmt.Errorf("messaging: decoding queue registration: %w", err)
	}
	if registration.QueueID == "" {
		return nil, fmt.Errorf("messaging: server returned an empty queue ID")
	}
	return &registration, nil
}

// GetEvents long-polls the queue for events with IDs greater than
// lastEventID. The call blocks server-side until events arrive or the
// server's hold time elapses, in which case it returns a heartbeat.
func (c *Client) GetEvents(ctx context.Context, queueID string, lastEventID int64) ([]Event, error) {
	params := url.Values{}
	params.Set("queue_id", queueID)
	params.Set("last_event_id", strconv.FormatInt(lastEventID, 10))
	data, err := c.doRequest(ctx, http.MethodGet, "/events", params)
	if err != nil {
		return nil, err
	}
	var result struct {
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("messaging: decoding events: %w", err)
	}
	return result.Events, nil
}

// DeleteQueue deregisters an event queue. Deleting an already expired
// queue is not an error.
func (c *Client) DeleteQueue(ctx context.Context, queueID string) error {
	params := url.Values{}
	params.Set("queue_id", queueID)
	_, err := c.doRequest(ctx, http.MethodDelete, "/events", params)
	if IsQueueExpired(err) {
		return nil
	}
	return err
}

// SetPresence reports the account's presence status ("active" or
// "idle") to the server.
func (c *Client) SetPresence(ctx context.Context, status string) error {
	params := url.Values{}
	params.Set("status", status)
	_, err := c.doRequest(ctx, http.MethodPost, "/users/me/presence", params)
	return err
}

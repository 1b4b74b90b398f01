// Package backend is the REST client for the marketplace API. The API owns all
// data; the portal only relays requests with the session's bearer token.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/utils"
)

const maxBodySize = 8 << 20

var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrForbidden    = errors.New("backend: forbidden")
	ErrNotFound     = errors.New("backend: not found")
)

// Error is a failed backend call. Message is the backend's own text when it
// provided one.
type Error struct {
	Status     int
	Message    string
	Suggestion string
	Path       string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %s returned %d: %s", e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("backend %s returned %d", e.Path, e.Status)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// UserMessage is the text safe to show to the user, possibly empty.
func (e *Error) UserMessage() string { return e.Message }

// SuggestionText is the backend's optional hint for the user.
func (e *Error) SuggestionText() string { return e.Suggestion }

// envelope is the failure shape shared by all endpoints.
type envelope struct {
	Success    *bool  `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

type tokenKey struct{}

// WithToken attaches the session's bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  utils.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger utils.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
		logger:  logger,
	}
}

// WithHTTPClient swaps the underlying transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	utils.FromContext(ctx, c.logger).Debug("backend call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds())

	var env envelope
	_ = json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || (env.Success != nil && !*env.Success) {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		status := resp.StatusCode
		if status >= 200 && status <= 299 {
			status = http.StatusUnprocessableEntity
		}
		return &Error{Status: status, Message: msg, Suggestion: env.Suggestion, Path: path}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

// listOf decodes either a bare JSON array or an object wrapping the array under
// one of keys.
type listOf[T any] struct {
	items []T
	keys  []string
}

func (l *listOf[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &l.items)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for _, k := range append(l.keys, "data") {
		if raw, ok := obj[k]; ok {
			return json.Unmarshal(raw, &l.items)
		}
	}
	return nil
}

// oneOf decodes a bare object or an object wrapping it under key.
type oneOf[T any] struct {
	item T
	key  string
}

func (o *oneOf[T]) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for _, k := range []string{o.key, "data"} {
		if raw, ok := obj[k]; ok && len(raw) > 0 && raw[0] == '{' {
			return json.Unmarshal(raw, &o.item)
		}
	}
	return json.Unmarshal(data, &o.item)
}

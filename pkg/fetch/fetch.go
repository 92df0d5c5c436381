package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/samvad-hq/samvad-fetch/pkg/httpclient"
)

// Logger defines the logging surface the translator relies on.
type Logger interface {
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}

// Client issues requests through a transport and translates responses into envelopes.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	transport httpclient.Client
	policy    Policy
	log       Logger
}

// Option configures a Client.
type Option func(*Client)

// WithPolicy selects the success classification policy.
func WithPolicy(p Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger attaches a logger; nil keeps the no-op logger.
func WithLogger(log Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New builds a Client around transport.
func New(transport httpclient.Client, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		policy:    PolicyTolerant,
		log:       noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the configured classification policy.
func (c *Client) Policy() Policy { return c.policy }

// Do issues exactly one request and translates the response into a Result.
// Transport failures and malformed bodies are returned as errors and never
// reach the envelope.
func Do[T, E any](ctx context.Context, c *Client, req Request) (Result[T, E], error) {
	var res Result[T, E]
	if c == nil || c.transport == nil {
		return res, fmt.Errorf("fetch client is not initialized")
	}
	if err := req.Method.validate(); err != nil {
		return res, err
	}

	body, err := encodePayload(req.Payload)
	if err != nil {
		return res, err
	}

	url := req.URL()
	resp, err := c.transport.Do(ctx, string(req.Method), url, buildHeaders(req.BearerToken, req.Headers, body != nil), body)
	if err != nil {
		c.log.WarnObj("fetch transport failed", "fetch_error", map[string]any{
			"method": req.Method,
			"url":    url,
			"error":  err.Error(),
		})
		return res, fmt.Errorf("%w: %s %s: %v", ErrTransport, req.Method, url, err)
	}

	desc := StatusDescriptor{Status: resp.StatusCode(), StatusText: resp.Status()}
	ok := c.policy.success(resp)
	c.log.DebugObj("fetch completed", "fetch_result", map[string]any{
		"method":  req.Method,
		"url":     url,
		"status":  desc.Status,
		"success": ok,
		"policy":  c.policy.String(),
	})

	if ok {
		payload, err := decodeOrStatus[T](resp.Body(), desc)
		if err != nil {
			return res, err
		}
		res.Payload = payload
		return res, nil
	}

	failure, err := decodeOrStatus[E](resp.Body(), desc)
	if err != nil {
		return res, err
	}
	res.Error = failure
	return res, nil
}

// encodePayload returns the JSON body, or nil when the payload encodes to null
// (nil interface, nil pointer, nil map, a literal null).
func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if bytes.Equal(raw, jsonNull) {
		return nil, nil
	}
	return raw, nil
}

func decodeOrStatus[V any](body []byte, desc StatusDescriptor) (*V, error) {
	v, err := decodeBody[V](body)
	if err != nil {
		return nil, err
	}
	if v != nil {
		return v, nil
	}
	return fromStatus[V](desc)
}

// Get issues a GET request. Any payload on req is dropped.
func Get[T, E any](ctx context.Context, c *Client, req Request) (Result[T, E], error) {
	req.Method = MethodGet
	req.Payload = nil
	return Do[T, E](ctx, c, req)
}

// Post issues a POST request with payload as the JSON body.
func Post[T, E any](ctx context.Context, c *Client, req Request, payload any) (Result[T, E], error) {
	req.Method = MethodPost
	req.Payload = payload
	return Do[T, E](ctx, c, req)
}

// Put issues a PUT request with payload as the JSON body.
func Put[T, E any](ctx context.Context, c *Client, req Request, payload any) (Result[T, E], error) {
	req.Method = MethodPut
	req.Payload = payload
	return Do[T, E](ctx, c, req)
}

// Delete issues a DELETE request. Any payload on req is dropped.
func Delete[T, E any](ctx context.Context, c *Client, req Request) (Result[T, E], error) {
	req.Method = MethodDelete
	req.Payload = nil
	return Do[T, E](ctx, c, req)
}

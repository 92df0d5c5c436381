package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	// Status returns the reason phrase, e.g. "Not Found".
	Status() string
	// IsSuccess reports the transport's own verdict on the status code.
	IsSuccess() bool
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (Response, error)
}

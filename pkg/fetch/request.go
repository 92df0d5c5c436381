package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// Method is one of the HTTP verbs the translator issues.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

var (
	// ErrUnsupportedMethod is returned for verbs other than GET/POST/PUT/DELETE.
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrDecodeBody is returned when a non-empty response body is not valid JSON.
	ErrDecodeBody = errors.New("decode response body")
	// ErrTransport wraps failures of the underlying network call.
	ErrTransport = errors.New("transport failure")
)

// ParseMethod normalizes s into a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if err := m.validate(); err != nil {
		return "", err
	}
	return m, nil
}

func (m Method) validate() error {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedMethod, string(m))
	}
}

// Request holds the parameters of a single call. Payload is any JSON-serializable
// value; nil sends no body.
type Request struct {
	BaseURL     string
	Path        string
	Method      Method
	Payload     any
	Headers     map[string]string
	BearerToken string
}

// URL returns the concatenated target address.
func (r Request) URL() string {
	return r.BaseURL + r.Path
}

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"
)

// buildHeaders sets the bearer authorization first and merges caller headers over it.
func buildHeaders(token string, extra map[string]string, hasBody bool) map[string]string {
	headers := make(map[string]string, len(extra)+2)
	if token != "" {
		headers[headerAuthorization] = "Bearer " + token
	}
	for k, v := range extra {
		headers[k] = v
	}
	if hasBody && !hasHeader(headers, headerContentType) {
		headers[headerContentType] = contentTypeJSON
	}
	return headers
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

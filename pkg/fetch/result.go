package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StatusDescriptor stands in for an empty response body.
type StatusDescriptor struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
}

// Result is the call envelope: exactly one of Payload and Error is set.
type Result[T, E any] struct {
	Payload *T `json:"payload"`
	Error   *E `json:"error"`
}

// OK reports whether the call was classified as a success.
func (r Result[T, E]) OK() bool {
	return r.Payload != nil
}

// Envelope is the untyped form used when the caller forwards raw JSON.
type Envelope = Result[json.RawMessage, json.RawMessage]

var jsonNull = []byte("null")

// decodeBody decodes body into V. It returns nil for an empty body or a JSON null.
func decodeBody[V any](body []byte) (*V, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return nil, nil
	}
	var v V
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeBody, err)
	}
	return &v, nil
}

// fromStatus converts the descriptor into V, directly when V accepts it and through
// its JSON form otherwise.
func fromStatus[V any](desc StatusDescriptor) (*V, error) {
	if v, ok := any(desc).(V); ok {
		return &v, nil
	}
	raw, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("encode status descriptor: %w", err)
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("substitute status descriptor: %w", err)
	}
	return &v, nil
}

package publishers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/samvad-hq/samvad-fetch/pkg/fetch"
)

// Event is the outcome of one call, published downstream.
type Event struct {
	CallID      string          `json:"call_id"`
	Profile     string          `json:"profile,omitempty"`
	Method      string          `json:"method"`
	URL         string          `json:"url"`
	StatusCode  int             `json:"status_code"`
	Success     bool            `json:"success"`
	Payload     json.RawMessage `json:"payload"`
	Error       json.RawMessage `json:"error"`
	CompletedAt time.Time       `json:"completed_at"`
}

// NewEvent constructs an Event from a translated envelope.
func NewEvent(callID, profile string, req fetch.Request, statusCode int, env fetch.Envelope) Event {
	evt := Event{
		CallID:      callID,
		Profile:     profile,
		Method:      string(req.Method),
		URL:         req.URL(),
		StatusCode:  statusCode,
		Success:     env.OK(),
		CompletedAt: time.Now().UTC(),
	}
	if env.Payload != nil {
		evt.Payload = *env.Payload
	}
	if env.Error != nil {
		evt.Error = *env.Error
	}
	return evt
}

// attributes returns the routing metadata attached to queue messages.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{
		"method":  e.Method,
		"success": strconv.FormatBool(e.Success),
	}
	if e.Profile != "" {
		attrs["profile"] = e.Profile
	}
	return attrs
}

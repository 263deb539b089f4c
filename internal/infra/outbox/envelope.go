package outbox

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	appoutbox "villabook/internal/app/outbox"
)

const DefaultSource = "app://villabook"

var ErrInvalidPayload = errors.New("outbox: payload is not valid json")

// Envelope is the CloudEvents JSON shape published for every record.
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            string          `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	TraceParent     string          `json:"traceparent,omitempty"`
	Data            json.RawMessage `json:"data"`
}

// Format wraps a message in an envelope. The envelope id is the record id so
// consumers can deduplicate redeliveries.
func Format(source string, msg Message) ([]byte, map[string]string, error) {
	if source == "" {
		source = DefaultSource
	}
	if !json.Valid(msg.Payload) {
		return nil, nil, ErrInvalidPayload
	}
	evt := Envelope{
		SpecVersion:     "1.0",
		ID:              msg.ID,
		Type:            msg.Name + ".v1",
		Source:          source,
		Subject:         msg.Aggregate,
		Time:            msg.OccurredAt.UTC().Format(time.RFC3339Nano),
		DataContentType: "application/json",
		TraceParent:     msg.Headers["traceparent"],
		Data:            msg.Payload,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{"content-type": "application/cloudevents+json"}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// TopicFor maps "booking.confirmed" to "<prefix>booking.events.v1".
func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}

// FromRecord adapts an in-process record to the worker message shape.
func FromRecord(rec appoutbox.EventRecord) Message {
	return Message{
		ID:         rec.ID,
		Name:       rec.Name,
		Payload:    rec.Payload,
		OccurredAt: rec.OccurredAt,
		Aggregate:  rec.Aggregate,
		Headers:    rec.Headers,
	}
}

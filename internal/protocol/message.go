package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TimestampLayout matches JavaScript's Date.toISOString output.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrMalformed wraps every reason an inbound payload is rejected.
var ErrMalformed = errors.New("malformed message")

// Message is one decoded envelope. Raw holds the complete JSON object so
// type-specific payloads can be decoded lazily.
type Message struct {
	Type      Kind
	Timestamp string
	Raw       json.RawMessage
}

type envelope struct {
	Type      *string `json:"type"`
	Timestamp *string `json:"timestamp"`
}

// Parse decodes and structurally validates an inbound payload: it must be a
// JSON object with a non-empty string "type" and a non-empty string
// "timestamp".
func Parse(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: invalid JSON: %v", ErrMalformed, err)
	}
	if env.Type == nil || *env.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if env.Timestamp == nil || *env.Timestamp == "" {
		return Message{}, fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Message{
		Type:      Kind(*env.Type),
		Timestamp: *env.Timestamp,
		Raw:       raw,
	}, nil
}

// Decode unmarshals the type-specific fields of m into out.
func (m Message) Decode(out any) error {
	if len(m.Raw) == 0 {
		return fmt.Errorf("%w: empty %s payload", ErrMalformed, m.Type)
	}
	if err := json.Unmarshal(m.Raw, out); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, m.Type, err)
	}
	return nil
}

// New builds an outbound message stamped with at. payload may be nil or any
// struct whose JSON form is an object; its fields are flattened next to
// "type" and "timestamp".
func New(kind Kind, at time.Time, payload any) (Message, error) {
	fields := map[string]any{}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s: %w", kind, err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return Message{}, fmt.Errorf("encode %s: payload is not an object: %w", kind, err)
		}
	}
	ts := FormatTimestamp(at)
	fields["type"] = string(kind)
	fields["timestamp"] = ts

	raw, err := json.Marshal(fields)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	return Message{Type: kind, Timestamp: ts, Raw: raw}, nil
}

// MustNew is New for payload types that always encode.
func MustNew(kind Kind, at time.Time, payload any) Message {
	m, err := New(kind, at, payload)
	if err != nil {
		panic(err)
	}
	return m
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func (m Message) String() string {
	return fmt.Sprintf("%s@%s", m.Type, m.Timestamp)
}

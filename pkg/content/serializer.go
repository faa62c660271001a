package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Serializer converts messages to and from opaque wire payloads.
// Implementations must satisfy Decode(Encode(m)) == m for every valid m.
type Serializer interface {
	Encode(m *Message) ([]byte, error)
	Decode(payload []byte) (*Message, error)
}

// DecodeError reports a payload that is not a validly structured message.
// It is always recoverable: callers drop the payload and carry on.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode content payload: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode content payload: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if err is, or wraps, a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// JSONSerializer encodes messages as compact JSON objects.
//
// Field order follows the Message struct, so encoding is deterministic.
// Decoding is strict: unknown fields, trailing data and messages failing
// Validate are all rejected with a *DecodeError.
type JSONSerializer struct{}

// NewJSONSerializer returns the default serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// Encode validates m and returns its JSON encoding.
// A nil ReceiverIDs is encoded as an empty list.
func (JSONSerializer) Encode(m *Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("cannot encode nil message")
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	out := *m
	if out.ReceiverIDs == nil {
		out.ReceiverIDs = []int{}
	}

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// Decode parses payload into a Message.
// Any structural or validation failure is returned as a *DecodeError.
func (JSONSerializer) Decode(payload []byte) (*Message, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, &DecodeError{Reason: "empty payload"}
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()

	var m Message
	if err := dec.Decode(&m); err != nil {
		return nil, &DecodeError{Reason: "malformed JSON", Err: err}
	}

	// Exactly one JSON value per payload
	if _, err := dec.Token(); err != io.EOF {
		return nil, &DecodeError{Reason: "trailing data after message"}
	}

	if err := m.Validate(); err != nil {
		return nil, &DecodeError{Reason: "invalid message", Err: err}
	}

	if m.ReceiverIDs == nil {
		m.ReceiverIDs = []int{}
	}

	return &m, nil
}

var defaultSerializer = NewJSONSerializer()

// Encode encodes m with the default JSON serializer.
func Encode(m *Message) ([]byte, error) {
	return defaultSerializer.Encode(m)
}

// Decode decodes payload with the default JSON serializer.
func Decode(payload []byte) (*Message, error) {
	return defaultSerializer.Decode(payload)
}

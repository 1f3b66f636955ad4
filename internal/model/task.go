package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedTask = errors.New("malformed task")
	ErrPayloadDecode = errors.New("payload decode")
)

// TaskID is the queue row id. It arrives as a JSON string or number.
type TaskID string

func (id TaskID) String() string { return string(id) }

func (id *TaskID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = TaskID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("task id must be a string or number: %w", err)
	}
	*id = TaskID(n.String())
	return nil
}

// Text is a string field that tolerates non-string JSON scalars (kept as their JSON text).
type Text string

func (t Text) String() string { return string(t) }

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(b)
	}
	return nil
}

// DeliveryTask is the message consumed from a tier queue. It is read-only once parsed.
type DeliveryTask struct {
	ID        TaskID          `json:"id"`
	EmailType Text            `json:"email_type,omitempty"`
	Template  string          `json:"email_template"`
	Subject   Text            `json:"subject"`
	To        AddressSet      `json:"to_address"`
	Cc        AddressSet      `json:"cc_addresses"`
	Bcc       AddressSet      `json:"bcc_addresses"`
	Data      json.RawMessage `json:"email_data"`
}

// ParseTask decodes a wire message. Structural problems wrap ErrMalformedTask.
func ParseTask(body []byte) (DeliveryTask, error) {
	var t DeliveryTask
	if err := json.Unmarshal(body, &t); err != nil {
		return DeliveryTask{}, fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	if t.ID == "" {
		return DeliveryTask{}, fmt.Errorf("%w: missing id", ErrMalformedTask)
	}
	if strings.TrimSpace(t.Template) == "" {
		return DeliveryTask{}, fmt.Errorf("%w: missing email_template", ErrMalformedTask)
	}
	return t, nil
}

// Payload returns the template data as a map. The field may be an object or a
// string holding a JSON object; null or absent yields an empty map.
func (t DeliveryTask) Payload() (map[string]any, error) {
	return DecodePayload(t.Data)
}

func DecodePayload(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPayloadDecode, err)
		}
		raw = bytes.TrimSpace([]byte(inner))
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadDecode, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

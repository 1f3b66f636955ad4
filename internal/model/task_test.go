package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseTask(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   error
		wantID    TaskID
		wantSubj  string
		wantTo    []string
		wantCc    []string
		wantBccOK bool
	}{
		{
			name:     "string id and list recipients",
			body:     `{"id":"T1","email_template":"welcome","subject":"Hi","to_address":["a@x.com"],"cc_addresses":null,"bcc_addresses":null,"email_data":{"name":"Ann"}}`,
			wantID:   "T1",
			wantSubj: "Hi",
			wantTo:   []string{"a@x.com"},
		},
		{
			name:     "numeric id and numeric subject",
			body:     `{"id":42,"email_template":"welcome","subject":2024,"to_address":"a@x.com"}`,
			wantID:   "42",
			wantSubj: "2024",
			wantTo:   []string{"a@x.com"},
		},
		{
			name:     "stringified recipient list",
			body:     `{"id":"T2","email_template":"welcome","subject":"Hi","to_address":"[\"a@x.com\",\"b@y.com\"]","cc_addresses":"c@z.com"}`,
			wantID:   "T2",
			wantSubj: "Hi",
			wantTo:   []string{"a@x.com", "b@y.com"},
			wantCc:   []string{"c@z.com"},
		},
		{
			name:    "not json",
			body:    `{"id":`,
			wantErr: ErrMalformedTask,
		},
		{
			name:    "missing id",
			body:    `{"email_template":"welcome"}`,
			wantErr: ErrMalformedTask,
		},
		{
			name:    "missing template",
			body:    `{"id":"T3","email_template":"  "}`,
			wantErr: ErrMalformedTask,
		},
		{
			name:    "id of wrong type",
			body:    `{"id":{"x":1},"email_template":"welcome"}`,
			wantErr: ErrMalformedTask,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := ParseTask([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseTask() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTask() error = %v", err)
			}
			if task.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", task.ID, tt.wantID)
			}
			if task.Subject.String() != tt.wantSubj {
				t.Errorf("Subject = %q, want %q", task.Subject, tt.wantSubj)
			}
			if !reflect.DeepEqual(task.To.List(), tt.wantTo) {
				t.Errorf("To = %v, want %v", task.To.List(), tt.wantTo)
			}
			if !reflect.DeepEqual(task.Cc.List(), tt.wantCc) {
				t.Errorf("Cc = %v, want %v", task.Cc.List(), tt.wantCc)
			}
			if !task.Bcc.IsAbsent() {
				t.Errorf("Bcc = %v, want absent", task.Bcc.List())
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{name: "object", raw: `{"name":"Ann"}`, want: map[string]any{"name": "Ann"}},
		{name: "double encoded object", raw: `"{\"name\":\"Ann\"}"`, want: map[string]any{"name": "Ann"}},
		{name: "nested", raw: `{"user":{"name":"John","age":30}}`, want: map[string]any{"user": map[string]any{"name": "John", "age": float64(30)}}},
		{name: "null", raw: `null`, want: map[string]any{}},
		{name: "absent", raw: ``, want: map[string]any{}},
		{name: "bad json string", raw: `"{bad json"`, wantErr: true},
		{name: "string holding array", raw: `"[1,2]"`, wantErr: true},
		{name: "array", raw: `[1,2]`, wantErr: true},
		{name: "number", raw: `7`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(json.RawMessage(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrPayloadDecode) {
					t.Fatalf("DecodePayload() error = %v, want ErrPayloadDecode", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePayload() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodePayload() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in     string
		want   Tier
		wantOK bool
	}{
		{"", TierNormal, true},
		{"HIGH", TierHigh, true},
		{" normal ", TierNormal, true},
		{"low", TierLow, true},
		{"bulk", TierLow, true},
		{"1", TierHigh, true},
		{"2", TierNormal, true},
		{"3", TierLow, true},
		{"9", TierLow, true},
		{"0", TierNormal, false},
		{"urgent", TierNormal, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTier(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseTier(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDeliveryStatus(t *testing.T) {
	if StatusSent != 1 || StatusFailed != 2 || StatusPending != 0 {
		t.Fatalf("status codes changed: pending=%d sent=%d failed=%d", StatusPending, StatusSent, StatusFailed)
	}
	if StatusPending.Terminal() {
		t.Errorf("pending must not be terminal")
	}
	if !StatusSent.Terminal() || !StatusFailed.Terminal() {
		t.Errorf("sent and failed must be terminal")
	}
	if DeliveryStatus(7).Valid() {
		t.Errorf("status 7 must be invalid")
	}
}

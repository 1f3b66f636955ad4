package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseAddressValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind AddressKind
		want     []string
	}{
		{name: "null", raw: `null`, wantKind: AddressAbsent, want: nil},
		{name: "empty input", raw: ``, wantKind: AddressAbsent, want: nil},
		{name: "list", raw: `["test1@example.com","test2@example.com"]`, wantKind: AddressMany, want: []string{"test1@example.com", "test2@example.com"}},
		{name: "empty list", raw: `[]`, wantKind: AddressMany, want: []string{}},
		{name: "list keeps duplicates and order", raw: `["b@x.com","a@x.com","b@x.com"]`, wantKind: AddressMany, want: []string{"b@x.com", "a@x.com", "b@x.com"}},
		{name: "list with null element", raw: `["test@example.com", null, "test2@example.com"]`, wantKind: AddressMany, want: []string{"test@example.com", "test2@example.com"}},
		{name: "single email string", raw: `"test@example.com"`, wantKind: AddressSingle, want: []string{"test@example.com"}},
		{name: "stringified json list", raw: `"[\"test1@example.com\", \"test2@example.com\"]"`, wantKind: AddressMany, want: []string{"test1@example.com", "test2@example.com"}},
		{name: "stringified quoted list", raw: `"['a@x.com', 'b@y.com']"`, wantKind: AddressMany, want: []string{"a@x.com", "b@y.com"}},
		{name: "invalid list text", raw: `"not valid json"`, wantKind: AddressSingle, want: []string{"not valid json"}},
		{name: "comma separated string", raw: `"test1@example.com, test2@example.com"`, wantKind: AddressSingle, want: []string{"test1@example.com, test2@example.com"}},
		{name: "brackets without quotes", raw: `"[test@example.com]"`, wantKind: AddressSingle, want: []string{"[test@example.com]"}},
		{name: "unterminated quoted list", raw: `"['a@x.com"`, wantKind: AddressSingle, want: []string{"['a@x.com"}},
		{name: "empty string", raw: `""`, wantKind: AddressSingle, want: []string{""}},
		{name: "integer", raw: `123`, wantKind: AddressSingle, want: []string{"123"}},
		{name: "object", raw: `{"email":"test@example.com"}`, wantKind: AddressSingle, want: []string{`{"email":"test@example.com"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAddressValue(json.RawMessage(tt.raw))
			if got.Kind() != tt.wantKind {
				t.Errorf("Kind() = %v, want %v", got.Kind(), tt.wantKind)
			}
			if !reflect.DeepEqual(got.List(), tt.want) {
				t.Errorf("List() = %#v, want %#v", got.List(), tt.want)
			}
			if got.IsAbsent() != (tt.want == nil) {
				t.Errorf("IsAbsent() = %v, want %v", got.IsAbsent(), tt.want == nil)
			}
		})
	}
}

func TestParseAddressValueIdempotent(t *testing.T) {
	inputs := []string{
		`["a@x.com","b@y.com"]`,
		`"['a@x.com', 'b@y.com']"`,
		`[]`,
		`["x@x.com","x@x.com"]`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			first := ParseAddressValue(json.RawMessage(in))
			b, err := json.Marshal(first)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			second := ParseAddressValue(b)
			if !reflect.DeepEqual(first.List(), second.List()) || first.Kind() != second.Kind() {
				t.Errorf("parse(parse(x)) = %v (%v), want %v (%v)", second.List(), second.Kind(), first.List(), first.Kind())
			}
		})
	}
}

func TestAddressSetMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		set  AddressSet
		want string
	}{
		{name: "absent", set: NoAddresses(), want: `null`},
		{name: "single", set: SingleAddress("a@x.com"), want: `"a@x.com"`},
		{name: "many", set: ManyAddresses("a@x.com", "b@y.com"), want: `["a@x.com","b@y.com"]`},
		{name: "empty many", set: ManyAddresses(), want: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.set)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("Marshal() = %s, want %s", b, tt.want)
			}
		})
	}
}

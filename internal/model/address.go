package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// AddressKind tags which shape a recipient field arrived in.
type AddressKind int

const (
	AddressAbsent AddressKind = iota
	AddressSingle
	AddressMany
)

// AddressSet is a normalized recipient field: absent, a single value, or an ordered list.
// It is decoded once at the JSON boundary; nothing downstream inspects raw shapes again.
type AddressSet struct {
	kind   AddressKind
	values []string
}

func NoAddresses() AddressSet { return AddressSet{} }

func SingleAddress(v string) AddressSet {
	return AddressSet{kind: AddressSingle, values: []string{v}}
}

func ManyAddresses(vs ...string) AddressSet {
	out := make([]string, len(vs))
	copy(out, vs)
	return AddressSet{kind: AddressMany, values: out}
}

func (a AddressSet) Kind() AddressKind { return a.kind }
func (a AddressSet) IsAbsent() bool    { return a.kind == AddressAbsent }

// List returns the recipients in order, or nil when the field is absent.
func (a AddressSet) List() []string {
	if a.kind == AddressAbsent {
		return nil
	}
	out := make([]string, len(a.values))
	copy(out, a.values)
	return out
}

// ParseAddressValue normalizes a raw JSON recipient field. It never fails:
//   - null or empty input → absent
//   - array → many, order and duplicates kept (null elements skipped, non-strings as JSON text)
//   - string → ParseAddressString
//   - any other scalar or object → single, holding its JSON text
func ParseAddressValue(raw json.RawMessage) AddressSet {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return NoAddresses()
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			return ManyAddresses(stringsFromRaw(items)...)
		}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return ParseAddressString(s)
		}
	}
	return SingleAddress(string(raw))
}

// ParseAddressString reads s as a literal list (JSON, or single/double quoted items).
// Anything that does not parse as a list is kept whole as a single address.
func ParseAddressString(s string) AddressSet {
	if items, ok := parseListLiteral(s); ok {
		return ManyAddresses(items...)
	}
	return SingleAddress(s)
}

func (a *AddressSet) UnmarshalJSON(b []byte) error {
	*a = ParseAddressValue(b)
	return nil
}

func (a AddressSet) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AddressSingle:
		return json.Marshal(a.values[0])
	case AddressMany:
		if a.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.values)
	default:
		return []byte("null"), nil
	}
}

func stringsFromRaw(items []json.RawMessage) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = bytes.TrimSpace(it)
		if bytes.Equal(it, []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(it, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(it))
	}
	return out
}

func parseListLiteral(s string) ([]string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(s), &items); err == nil {
		return stringsFromRaw(items), true
	}
	return parseQuotedItems(s[1 : len(s)-1])
}

// parseQuotedItems accepts `'a', "b",` style bodies; every item must be quoted.
func parseQuotedItems(body string) ([]string, bool) {
	items := []string{}
	i := 0
	skipSpace := func() {
		for i < len(body) && (body[i] == ' ' || body[i] == '\t' || body[i] == '\n' || body[i] == '\r') {
			i++
		}
	}

	for {
		skipSpace()
		if i == len(body) {
			return items, true
		}

		quote := body[i]
		if quote != '\'' && quote != '"' {
			return nil, false
		}
		i++

		var sb strings.Builder
		for i < len(body) && body[i] != quote {
			if body[i] == '\\' && i+1 < len(body) {
				i++
			}
			sb.WriteByte(body[i])
			i++
		}
		if i >= len(body) {
			return nil, false // unterminated
		}
		i++
		items = append(items, sb.String())

		skipSpace()
		if i == len(body) {
			return items, true
		}
		if body[i] != ',' {
			return nil, false
		}
		i++
	}
}

package ats

import (
	"bytes"
	"encoding/json"
	"strings"
)

// flexString decodes a JSON string, number or null into a string. Upstream
// ids switch between numeric and string forms across providers and versions.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexNames decodes a location-like value that may be a string, an object
// with a name/location/value key, or a list of either.
type flexNames []string

func (f *flexNames) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = nil
		return nil
	}
	if b[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		var out flexNames
		for _, item := range items {
			var one flexNames
			if err := one.UnmarshalJSON(item); err != nil {
				return err
			}
			out = append(out, one...)
		}
		*f = out
		return nil
	}
	if b[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		for _, key := range []string{"name", "location", "locationName", "value"} {
			if raw, ok := obj[key]; ok {
				var s flexString
				if err := json.Unmarshal(raw, &s); err == nil && s != "" {
					*f = flexNames{string(s)}
					return nil
				}
			}
		}
		*f = nil
		return nil
	}
	var s flexString
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*f = nil
		return nil
	}
	*f = flexNames{string(s)}
	return nil
}

// joinLocations joins locations with " | ", dropping blanks and
// case-insensitive duplicates while keeping first-seen order.
func joinLocations(groups ...[]string) string {
	seen := make(map[string]struct{})
	var parts []string
	for _, g := range groups {
		for _, p := range g {
			p = strings.TrimSpace(p)
			key := strings.ToLower(p)
			if p == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " | ")
}

// firstNonEmpty returns the first non-blank value.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

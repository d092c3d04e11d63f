// Package memory maintains the persistent user profile: a schema-less
// map of facts learned across conversations, rewritten by a background
// synthesis pass after each turn.
package memory

import (
	"encoding/json"
	"fmt"
)

// Profile maps arbitrary string keys to JSON-like values. No schema is
// enforced on keys; values are restricted to a closed union checked by
// Validate: string, number, bool, array of strings, or a nested map of
// the same union.
type Profile map[string]interface{}

// Empty reports whether the profile holds no facts.
func (p Profile) Empty() bool { return len(p) == 0 }

// Encode serializes the profile for storage or prompt embedding.
func (p Profile) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode profile: %w", err)
	}
	return string(b), nil
}

// Decode parses a stored profile string. An empty input yields an empty
// profile rather than an error.
func Decode(s string) (Profile, error) {
	if s == "" {
		return Profile{}, nil
	}
	var p Profile
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p == nil {
		p = Profile{}
	}
	return p, nil
}

// Clone returns a deep copy so a published profile is never mutated
// through a retained reference.
func (p Profile) Clone() Profile {
	if p == nil {
		return nil
	}
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(t))
		for i, e := range t {
			l[i] = cloneValue(e)
		}
		return l
	case []string:
		l := make([]string, len(t))
		copy(l, t)
		return l
	default:
		return t
	}
}

// Validate checks every value against the allowed union. The remote
// model is not trusted blindly: anything outside the union (nulls,
// mixed-type arrays, arrays of objects) fails validation and the caller
// keeps the previous profile.
func (p Profile) Validate() error {
	for key, value := range p {
		if err := validateValue(value); err != nil {
			return fmt.Errorf("profile key %q: %w", key, err)
		}
	}
	return nil
}

func validateValue(v interface{}) error {
	switch t := v.(type) {
	case string, bool, float64, int, int64:
		return nil
	case []string:
		return nil
	case []interface{}:
		for i, e := range t {
			if _, ok := e.(string); !ok {
				return fmt.Errorf("array element %d is %T, want string", i, e)
			}
		}
		return nil
	case map[string]interface{}:
		for k, e := range t {
			if err := validateValue(e); err != nil {
				return fmt.Errorf("nested key %q: %w", k, err)
			}
		}
		return nil
	case Profile:
		return t.Validate()
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}

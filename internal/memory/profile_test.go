package memory

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProfileEncodeDecodeRoundTrip(t *testing.T) {
	p := Profile{
		"hobbies": []interface{}{"chess", "vinyl"},
		"mood":    "stressed",
		"age":     float64(29),
		"night_owl": true,
		"work": map[string]interface{}{
			"role": "engineer",
			"remote": true,
		},
	}

	encoded, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff(p, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEmptyString(t *testing.T) {
	p, err := Decode("")
	if err != nil {
		t.Fatalf("Decode(\"\") failed: %v", err)
	}
	if !p.Empty() {
		t.Errorf("expected empty profile, got %v", p)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode("not json"); err == nil {
		t.Error("expected decode error")
	}
}

func TestValidateAcceptsUnion(t *testing.T) {
	p := Profile{
		"name":    "Alex",
		"count":   float64(3),
		"flag":    false,
		"tags":    []interface{}{"a", "b"},
		"strings": []string{"x"},
		"nested":  map[string]interface{}{"inner": "v", "deep": map[string]interface{}{"n": float64(1)}},
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate rejected valid profile: %v", err)
	}
}

func TestValidateRejectsOutsideUnion(t *testing.T) {
	cases := map[string]Profile{
		"null value":        {"k": nil},
		"number array":      {"k": []interface{}{float64(1), float64(2)}},
		"mixed array":       {"k": []interface{}{"a", float64(1)}},
		"array of objects":  {"k": []interface{}{map[string]interface{}{"x": "y"}}},
		"nested null":       {"k": map[string]interface{}{"inner": nil}},
		"func-ish any type": {"k": struct{}{}},
	}
	for name, p := range cases {
		if err := p.Validate(); err == nil {
			t.Errorf("%s: expected validation failure for %v", name, p)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := Profile{
		"tags":   []interface{}{"a"},
		"nested": map[string]interface{}{"k": "v"},
	}
	c := p.Clone()
	c["tags"].([]interface{})[0] = "mutated"
	c["nested"].(map[string]interface{})["k"] = "mutated"

	if p["tags"].([]interface{})[0] != "a" {
		t.Error("clone shares array backing with original")
	}
	if p["nested"].(map[string]interface{})["k"] != "v" {
		t.Error("clone shares nested map with original")
	}
}

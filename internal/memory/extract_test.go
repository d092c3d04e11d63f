package memory

import (
	"testing"
)

func TestParseProfileResponseFencedJSON(t *testing.T) {
	raw := "Here is the profile:\n```json\n{\"mood\": \"calm\", \"hobbies\": [\"chess\"]}\n```\nDone."
	p, err := ParseProfileResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p["mood"] != "calm" {
		t.Errorf("mood = %v", p["mood"])
	}
}

func TestParseProfileResponsePlainFence(t *testing.T) {
	raw := "```\n{\"a\": \"b\"}\n```"
	p, err := ParseProfileResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p["a"] != "b" {
		t.Errorf("a = %v", p["a"])
	}
}

func TestParseProfileResponseBareJSON(t *testing.T) {
	p, err := ParseProfileResponse("  {\"x\": 1}\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p["x"] != float64(1) {
		t.Errorf("x = %v", p["x"])
	}
}

func TestParseProfileResponseProse(t *testing.T) {
	if _, err := ParseProfileResponse("Sorry, I cannot do that."); err == nil {
		t.Error("expected parse failure for prose")
	}
}

func TestParseProfileResponseUnterminatedFence(t *testing.T) {
	// An unterminated fence falls back to whole-body parsing, which
	// fails because the body is not JSON.
	if _, err := ParseProfileResponse("```json\n{\"a\": \"b\"}"); err == nil {
		t.Error("expected failure for unterminated fence")
	}
}

func TestParseProfileResponseRejectsInvalidUnion(t *testing.T) {
	if _, err := ParseProfileResponse(`{"scores": [1, 2, 3]}`); err == nil {
		t.Error("expected union validation to reject number array")
	}
	if _, err := ParseProfileResponse(`{"gone": null}`); err == nil {
		t.Error("expected union validation to reject null")
	}
}

func TestParseProfileResponseEmptyObject(t *testing.T) {
	p, err := ParseProfileResponse("{}")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !p.Empty() {
		t.Errorf("expected empty profile, got %v", p)
	}
}

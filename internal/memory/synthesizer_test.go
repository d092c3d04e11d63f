package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// echoCompleter replies with the profile JSON embedded in the prompt,
// simulating a model that merges nothing new.
type echoCompleter struct {
	lastSystem string
	lastPrompt string
}

func (e *echoCompleter) CompleteJSON(_ context.Context, system, prompt string) (string, error) {
	e.lastSystem = system
	e.lastPrompt = prompt

	start := strings.Index(prompt, "{")
	end := strings.LastIndex(prompt, "}")
	if start == -1 || end < start {
		return "{}", nil
	}
	return prompt[start : end+1], nil
}

type fixedCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fixedCompleter) CompleteJSON(context.Context, string, string) (string, error) {
	f.calls++
	return f.response, f.err
}

func window() []Utterance {
	return []Utterance{
		{Role: "user", Text: "I started playing chess again"},
		{Role: "assistant", Text: "Back on the grind. Blitz or classical?"},
	}
}

func TestSynthesizeEmptyWindowIsNoop(t *testing.T) {
	c := &fixedCompleter{response: `{"should": "never be used"}`}
	s := NewSynthesizer(c)

	p, ok, err := s.Synthesize(context.Background(), nil, Profile{"mood": "fine"})
	if err != nil || ok || p != nil {
		t.Errorf("empty window: got p=%v ok=%v err=%v", p, ok, err)
	}
	if c.calls != 0 {
		t.Errorf("completer called %d times for empty window", c.calls)
	}
}

func TestSynthesizeReplacementIdempotence(t *testing.T) {
	// With a synthesizer that echoes the current profile back, running
	// twice over the same window must leave the profile identical.
	current := Profile{"hobbies": []interface{}{"chess"}, "mood": "stressed"}
	s := NewSynthesizer(&echoCompleter{})

	first, ok, err := s.Synthesize(context.Background(), window(), current)
	if err != nil || !ok {
		t.Fatalf("first synthesis failed: ok=%v err=%v", ok, err)
	}
	second, ok, err := s.Synthesize(context.Background(), window(), first)
	if err != nil || !ok {
		t.Fatalf("second synthesis failed: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(current, second); diff != "" {
		t.Errorf("profile drifted across idempotent syntheses (-want +got):\n%s", diff)
	}
}

func TestSynthesizePromptContents(t *testing.T) {
	echo := &echoCompleter{}
	s := NewSynthesizer(echo)

	if _, _, err := s.Synthesize(context.Background(), window(), Profile{}); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.Contains(echo.lastPrompt, "empty") {
		t.Error("empty profile should appear as the literal token 'empty'")
	}
	if !strings.Contains(echo.lastPrompt, "USER: I started playing chess again") {
		t.Errorf("user turn missing from prompt:\n%s", echo.lastPrompt)
	}
	if !strings.Contains(echo.lastPrompt, "ASSISTANT: Back on the grind") {
		t.Error("assistant turn missing from prompt")
	}
	if !strings.Contains(echo.lastSystem, "silent") {
		t.Error("system prompt should frame the model as a silent analyzer")
	}
}

func TestSynthesizeRequestFailure(t *testing.T) {
	s := NewSynthesizer(&fixedCompleter{err: errors.New("503")})
	_, ok, err := s.Synthesize(context.Background(), window(), Profile{})
	if err == nil || ok {
		t.Errorf("expected request failure, got ok=%v err=%v", ok, err)
	}
}

func TestSynthesizeUnparseableResponse(t *testing.T) {
	s := NewSynthesizer(&fixedCompleter{response: "I noticed the user likes chess."})
	_, ok, err := s.Synthesize(context.Background(), window(), Profile{})
	if err == nil || ok {
		t.Errorf("expected parse failure, got ok=%v err=%v", ok, err)
	}
}

func TestSynthesizeInvalidUnionRejected(t *testing.T) {
	s := NewSynthesizer(&fixedCompleter{response: `{"elo": [1200, 1300]}`})
	_, ok, err := s.Synthesize(context.Background(), window(), Profile{})
	if err == nil || ok {
		t.Errorf("expected union rejection, got ok=%v err=%v", ok, err)
	}
}

func TestSynthesizeFencedResponseAccepted(t *testing.T) {
	s := NewSynthesizer(&fixedCompleter{response: "```json\n{\"mood\": \"good\"}\n```"})
	p, ok, err := s.Synthesize(context.Background(), window(), Profile{})
	if err != nil || !ok {
		t.Fatalf("fenced response rejected: ok=%v err=%v", ok, err)
	}
	if p["mood"] != "good" {
		t.Errorf("mood = %v", p["mood"])
	}
}

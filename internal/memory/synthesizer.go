package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/dhruvdaberao/CROCO/internal/logging"
)

// Utterance is the synthesizer's view of one transcript turn. The chat
// package converts its own turn type so memory stays free of transcript
// internals.
type Utterance struct {
	Role string // "user" or "assistant"
	Text string
}

// Completer issues a one-shot completion expected to contain JSON.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, prompt string) (string, error)
}

const synthesisSystem = `You are a silent conversation analyzer. You observe a dialogue ` +
	`between a user and their AI companion and maintain a compact JSON profile of the user. ` +
	`You never address anyone and never produce prose. Your entire output is a single raw JSON object.`

// Synthesizer reconciles recent dialogue into the user profile by
// asking the model to merge new facts into the current profile. The
// model performs the merge; locally the result replaces the profile
// wholesale (last write wins).
type Synthesizer struct {
	client Completer
}

// NewSynthesizer creates a synthesizer over the given completer.
func NewSynthesizer(client Completer) *Synthesizer {
	return &Synthesizer{client: client}
}

// Synthesize merges the conversation window into current and returns
// the replacement profile. ok is false when there was nothing to do
// (empty window). Any request or parse failure returns an error; the
// caller logs it and keeps the existing profile — synthesis is never
// retried and never surfaces to the user.
func (s *Synthesizer) Synthesize(ctx context.Context, window []Utterance, current Profile) (Profile, bool, error) {
	if len(window) == 0 {
		return nil, false, nil
	}

	prompt, err := buildPrompt(window, current)
	if err != nil {
		return nil, false, err
	}

	logging.MemoryDebug("Synthesize: window=%d turns, profile keys=%d", len(window), len(current))

	raw, err := s.client.CompleteJSON(ctx, synthesisSystem, prompt)
	if err != nil {
		return nil, false, fmt.Errorf("synthesis request: %w", err)
	}

	next, err := ParseProfileResponse(raw)
	if err != nil {
		return nil, false, fmt.Errorf("synthesis response: %w", err)
	}

	logging.Memory("Profile synthesized: %d keys", len(next))
	return next, true, nil
}

func buildPrompt(window []Utterance, current Profile) (string, error) {
	profileJSON := "empty"
	if !current.Empty() {
		encoded, err := current.Encode()
		if err != nil {
			return "", err
		}
		profileJSON = encoded
	}

	var b strings.Builder
	b.WriteString("Current profile of the user:\n")
	b.WriteString(profileJSON)
	b.WriteString("\n\nRecent conversation:\n")
	for _, u := range window {
		role := "USER"
		if u.Role != "user" {
			role = "ASSISTANT"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(u.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nMerge any new facts about the user from the conversation into the profile. ")
	b.WriteString("Keep existing facts unless the conversation contradicts them. ")
	b.WriteString("Use simple keys; values may be strings, numbers, booleans, arrays of strings, ")
	b.WriteString("or nested objects of the same kinds. ")
	b.WriteString("Respond with ONLY the updated profile as a raw JSON object, no commentary, no markdown.")
	return b.String(), nil
}

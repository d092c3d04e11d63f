package memory

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseProfileResponse recovers a profile object from a raw model reply.
// Models asked for "only JSON" still wrap output in markdown fences
// often enough that parsing is two-staged: a fenced code block first,
// then the whole body. The result is validated against the profile
// value union before being accepted.
func ParseProfileResponse(raw string) (Profile, error) {
	candidate := extractFencedBlock(raw)
	if candidate == "" {
		candidate = strings.TrimSpace(raw)
	}

	var p Profile
	if err := json.Unmarshal([]byte(candidate), &p); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	if p == nil {
		p = Profile{}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// extractFencedBlock returns the body of the first ```json (or plain
// ```) fence, or "" when no complete fence is present.
func extractFencedBlock(s string) string {
	start := strings.Index(s, "```json")
	if start == -1 {
		start = strings.Index(s, "```")
		if start == -1 {
			return ""
		}
	}

	// Skip past the opening line.
	rest := s[start:]
	nl := strings.Index(rest, "\n")
	if nl == -1 {
		return ""
	}
	body := rest[nl+1:]

	end := strings.Index(body, "```")
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(body[:end])
}

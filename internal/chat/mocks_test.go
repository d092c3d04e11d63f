package chat

import (
	"context"
	"sync"

	"github.com/dhruvdaberao/CROCO/internal/llm"
	"github.com/dhruvdaberao/CROCO/internal/memory"
)

// scriptedSession streams a fixed set of chunks, then optionally fails.
type scriptedSession struct {
	mu     sync.Mutex
	chunks []string
	err    error
	calls  [][]llm.Part
}

func (s *scriptedSession) StreamMessage(ctx context.Context, parts []llm.Part) (<-chan string, <-chan error) {
	s.mu.Lock()
	s.calls = append(s.calls, parts)
	chunks := s.chunks
	err := s.err
	s.mu.Unlock()

	contentChan := make(chan string)
	errorChan := make(chan error, 1)
	go func() {
		defer close(contentChan)
		defer close(errorChan)
		for _, c := range chunks {
			select {
			case contentChan <- c:
			case <-ctx.Done():
				errorChan <- ctx.Err()
				return
			}
		}
		if err != nil {
			errorChan <- err
		}
	}()
	return contentChan, errorChan
}

func (s *scriptedSession) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedSession) lastParts() []llm.Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

// memStorage is an in-memory Storage double.
type memStorage struct {
	mu       sync.Mutex
	settings map[string]string
	history  []historyRow
}

type historyRow struct {
	sessionID  string
	turnNumber int
	speaker    string
	text       string
	hasImage   bool
}

func newMemStorage() *memStorage {
	return &memStorage{settings: make(map[string]string)}
}

func (m *memStorage) GetSetting(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *memStorage) PutSetting(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *memStorage) AppendHistoryTurn(sessionID string, turnNumber int, speaker, text string, hasImage bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, historyRow{sessionID, turnNumber, speaker, text, hasImage})
	return nil
}

func (m *memStorage) setting(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	return v, ok
}

// stubSynthesizer records its inputs and returns a configured result.
type stubSynthesizer struct {
	mu      sync.Mutex
	result  memory.Profile
	err     error
	windows [][]memory.Utterance
	inputs  []memory.Profile
}

func (s *stubSynthesizer) Synthesize(_ context.Context, window []memory.Utterance, current memory.Profile) (memory.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, window)
	s.inputs = append(s.inputs, current)
	if s.err != nil {
		return nil, false, s.err
	}
	if len(window) == 0 {
		return nil, false, nil
	}
	if s.result == nil {
		return current.Clone(), true, nil
	}
	return s.result.Clone(), true, nil
}

func (s *stubSynthesizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *stubSynthesizer) lastWindow() []memory.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.windows) == 0 {
		return nil
	}
	return s.windows[len(s.windows)-1]
}

// Package llm adapts the remote Gemini text-generation service. It
// exposes a chat session with streamed replies over the REST SSE
// endpoint, and a one-shot structured completion used by memory
// synthesis (see genai.go).
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dhruvdaberao/CROCO/internal/logging"
)

// GeminiConfig holds configuration for the REST client.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.5-flash",
		Timeout:         2 * time.Minute,
		MaxOutputTokens: 8192,
	}
}

// GeminiClient talks to the Gemini REST API.
type GeminiClient struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	httpClient      *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewGeminiClient creates a client with default config.
func NewGeminiClient(apiKey string) *GeminiClient {
	return NewGeminiClientWithConfig(DefaultGeminiConfig(apiKey))
}

// NewGeminiClientWithConfig creates a client with custom config.
func NewGeminiClientWithConfig(config GeminiConfig) *GeminiClient {
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	maxTokens := config.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GeminiClient{
		apiKey:          config.APIKey,
		baseURL:         strings.TrimRight(config.BaseURL, "/"),
		model:           model,
		maxOutputTokens: maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// ChatSession is a stateful conversation bound to one system
// instruction. History is carried client-side in the request contents;
// a turn is recorded into history only after its stream completes
// cleanly, so a failed send can simply be retried.
type ChatSession struct {
	client *GeminiClient
	system string

	mu      sync.Mutex
	history []geminiContent
}

// NewSession creates a chat session bound to systemInstruction.
func (c *GeminiClient) NewSession(systemInstruction string) *ChatSession {
	return &ChatSession{client: c, system: systemInstruction}
}

// HistoryLen reports the number of recorded contents, user and model.
func (s *ChatSession) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

func toContent(role string, parts []Part) geminiContent {
	content := geminiContent{Role: role}
	for _, p := range parts {
		wp := geminiPart{Text: p.Text}
		if p.InlineData != nil {
			wp.InlineData = &geminiBlob{
				MIMEType: p.InlineData.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
			}
		}
		content.Parts = append(content.Parts, wp)
	}
	return content
}

// throttle enforces a minimum interval between requests.
func (c *GeminiClient) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elapsed := time.Since(c.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
}

// StreamMessage sends parts within the session and returns channels of
// incremental text deltas. The content channel closes when the reply is
// complete; at most one error is delivered on the error channel. The
// returned stream is finite and not restartable: a failure mid-stream
// terminates it after whatever deltas already arrived.
func (s *ChatSession) StreamMessage(ctx context.Context, parts []Part) (<-chan string, <-chan error) {
	contentChan := make(chan string, 100)
	errorChan := make(chan error, 1)

	c := s.client
	logging.APIDebug("StreamMessage: model=%s parts=%d history=%d", c.model, len(parts), s.HistoryLen())

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
			defer cancel()
		}

		start := time.Now()

		if c.apiKey == "" {
			errorChan <- fmt.Errorf("API key not configured")
			return
		}

		userContent := toContent("user", parts)

		s.mu.Lock()
		contents := make([]geminiContent, len(s.history), len(s.history)+1)
		copy(contents, s.history)
		s.mu.Unlock()
		contents = append(contents, userContent)

		reqBody := geminiRequest{
			Contents: contents,
			SystemInstruction: &geminiContent{
				Parts: []geminiPart{{Text: s.system}},
			},
			GenerationConfig: geminiGenerationConfig{
				Temperature:     1.0,
				MaxOutputTokens: c.maxOutputTokens,
			},
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			errorChan <- fmt.Errorf("failed to marshal request: %w", err)
			return
		}

		url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, c.model, c.apiKey)

		maxRetries := 3
		var lastErr error

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
			}
			c.throttle()

			req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
			if err != nil {
				errorChan <- fmt.Errorf("failed to create request: %w", err)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "text/event-stream")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				lastErr = fmt.Errorf("request failed: %w", err)
				continue
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()
				lastErr = fmt.Errorf("rate limit exceeded (429): %s", strings.TrimSpace(string(body)))
				continue
			}

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()
				errorChan <- fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
				return
			}

			reply, err := s.scanStream(ctx, resp.Body, contentChan)
			resp.Body.Close()
			if err != nil {
				logging.Get(logging.CategoryAPI).Errorf("stream failed after %v: %v", time.Since(start), err)
				errorChan <- err
				return
			}

			s.mu.Lock()
			s.history = append(s.history, userContent, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: reply}},
			})
			s.mu.Unlock()

			logging.APIDebug("StreamMessage: completed in %v (%d bytes)", time.Since(start), len(reply))
			return
		}

		errorChan <- fmt.Errorf("max retries exceeded: %w", lastErr)
	}()

	return contentChan, errorChan
}

// scanStream reads SSE lines from body, forwarding text deltas, and
// returns the concatenated reply.
func (s *ChatSession) scanStream(ctx context.Context, body io.Reader, contentChan chan<- string) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var reply strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return reply.String(), fmt.Errorf("API error: %s", chunk.Error.Message)
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		for _, part := range chunk.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			reply.WriteString(part.Text)
			select {
			case contentChan <- part.Text:
			case <-ctx.Done():
				return reply.String(), ctx.Err()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return reply.String(), fmt.Errorf("stream error: %w", err)
	}
	return reply.String(), nil
}

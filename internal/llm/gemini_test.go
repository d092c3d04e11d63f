package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sseChunk(text string) string {
	payload := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"role":  "model",
				"parts": []map[string]string{{"text": text}},
			}},
		},
	}
	b, _ := json.Marshal(payload)
	return "data: " + string(b) + "\n\n"
}

func newTestSession(t *testing.T, handler http.HandlerFunc) (*ChatSession, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewGeminiClientWithConfig(GeminiConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
	return client.NewSession("You are a test assistant."), srv
}

func collect(t *testing.T, contentChan <-chan string, errorChan <-chan error) ([]string, error) {
	t.Helper()
	var chunks []string
	for contentChan != nil || errorChan != nil {
		select {
		case c, ok := <-contentChan:
			if !ok {
				contentChan = nil
				continue
			}
			chunks = append(chunks, c)
		case err, ok := <-errorChan:
			if !ok {
				errorChan = nil
				continue
			}
			if err != nil {
				return chunks, err
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for stream")
		}
	}
	return chunks, nil
}

func TestStreamMessageDeltasInOrder(t *testing.T) {
	session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "test-model:streamGenerateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, s := range []string{"Hel", "lo ", "there"} {
			fmt.Fprint(w, sseChunk(s))
		}
	})

	contentChan, errorChan := session.StreamMessage(context.Background(), []Part{{Text: "hi"}})
	chunks, err := collect(t, contentChan, errorChan)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if got := strings.Join(chunks, "|"); got != "Hel|lo |there" {
		t.Errorf("chunks misordered or lost: %q", got)
	}
	// User content + model reply recorded after a clean stream.
	if session.HistoryLen() != 2 {
		t.Errorf("history length = %d, want 2", session.HistoryLen())
	}
}

func TestStreamMessageCarriesHistory(t *testing.T) {
	var lastReq geminiRequest
	session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&lastReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("ok"))
	})

	contentChan, errorChan := session.StreamMessage(context.Background(), []Part{{Text: "first"}})
	if _, err := collect(t, contentChan, errorChan); err != nil {
		t.Fatal(err)
	}
	contentChan, errorChan = session.StreamMessage(context.Background(), []Part{{Text: "second"}})
	if _, err := collect(t, contentChan, errorChan); err != nil {
		t.Fatal(err)
	}

	// Second request must contain: user "first", model "ok", user "second".
	if len(lastReq.Contents) != 3 {
		t.Fatalf("contents length = %d, want 3", len(lastReq.Contents))
	}
	if lastReq.Contents[0].Parts[0].Text != "first" || lastReq.Contents[1].Parts[0].Text != "ok" {
		t.Errorf("history not carried: %+v", lastReq.Contents)
	}
	if lastReq.SystemInstruction == nil || lastReq.SystemInstruction.Parts[0].Text != "You are a test assistant." {
		t.Error("system instruction missing from request")
	}
}

func TestStreamMessageInlineImage(t *testing.T) {
	var req geminiRequest
	session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("nice pic"))
	})

	parts := []Part{
		{Text: "look at this"},
		{InlineData: &Blob{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}}},
	}
	contentChan, errorChan := session.StreamMessage(context.Background(), parts)
	if _, err := collect(t, contentChan, errorChan); err != nil {
		t.Fatal(err)
	}

	sent := req.Contents[len(req.Contents)-1]
	if len(sent.Parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(sent.Parts))
	}
	img := sent.Parts[1].InlineData
	if img == nil || img.MIMEType != "image/jpeg" || img.Data != "/9g=" {
		t.Errorf("inline image not encoded: %+v", img)
	}
}

func TestStreamMessageHTTPErrorBeforeChunks(t *testing.T) {
	session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusBadRequest)
	})

	contentChan, errorChan := session.StreamMessage(context.Background(), []Part{{Text: "hi"}})
	chunks, err := collect(t, contentChan, errorChan)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %v", chunks)
	}
	// A failed send records nothing.
	if session.HistoryLen() != 0 {
		t.Errorf("history length = %d, want 0", session.HistoryLen())
	}
}

func TestStreamMessageErrorAfterChunks(t *testing.T) {
	session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("partial"))
		b, _ := json.Marshal(map[string]interface{}{
			"error": map[string]interface{}{"code": 500, "message": "mid-stream failure"},
		})
		fmt.Fprint(w, "data: "+string(b)+"\n\n")
	})

	contentChan, errorChan := session.StreamMessage(context.Background(), []Part{{Text: "hi"}})
	chunks, err := collect(t, contentChan, errorChan)
	if err == nil {
		t.Fatal("expected mid-stream error")
	}
	if len(chunks) != 1 || chunks[0] != "partial" {
		t.Errorf("partial delta lost: %v", chunks)
	}
	if !strings.Contains(err.Error(), "mid-stream failure") {
		t.Errorf("error detail missing: %v", err)
	}
}

func TestStreamMessageMissingAPIKey(t *testing.T) {
	client := NewGeminiClientWithConfig(GeminiConfig{APIKey: "", BaseURL: "http://localhost:1", Model: "m"})
	session := client.NewSession("sys")

	contentChan, errorChan := session.StreamMessage(context.Background(), []Part{{Text: "hi"}})
	_, err := collect(t, contentChan, errorChan)
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Errorf("expected API key error, got %v", err)
	}
}

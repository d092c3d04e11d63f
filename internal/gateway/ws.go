package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dhruvdaberao/CROCO/internal/logging"
)

// wsPollInterval controls how often connected clients are checked for
// fresh state. Streaming mutates the trailing turn in place, so the
// feed is a state push, not a delta protocol.
const wsPollInterval = 150 * time.Millisecond

// handleWS upgrades to a WebSocket and pushes a State snapshot
// whenever the conversation changes. Inbound messages are treated as
// MessageRequest submissions.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logging.Get(logging.CategoryGateway).Warnf("websocket accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: each inbound frame is a message submission. Send errors
	// cancel the writer loop as well.
	go func() {
		defer cancel()
		for {
			var req MessageRequest
			if err := wsjson.Read(ctx, conn, &req); err != nil {
				return
			}
			messagesTotal.Inc()
			s.sendMu.Lock()
			s.conv.SendMessage(ctx, req.Text, req.Image)
			s.sendMu.Unlock()
			if s.conv.Err() != "" {
				sendFailuresTotal.Inc()
			}
		}
	}()

	ticker := time.NewTicker(wsPollInterval)
	defer ticker.Stop()

	var last State
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := s.snapshot()
			if !first && stateEqual(last, cur) {
				continue
			}
			if err := wsjson.Write(ctx, conn, cur); err != nil {
				return
			}
			last, first = cur, false
		}
	}
}

// stateEqual reports whether two snapshots would render identically.
// Turn text grows during streaming, so comparing the last turn's text
// is what catches chunk-by-chunk progress.
func stateEqual(a, b State) bool {
	if a.Loading != b.Loading || a.Error != b.Error ||
		a.UserName != b.UserName || a.Avatar != b.Avatar ||
		len(a.Turns) != len(b.Turns) {
		return false
	}
	if n := len(a.Turns); n > 0 && a.Turns[n-1] != b.Turns[n-1] {
		return false
	}
	return true
}

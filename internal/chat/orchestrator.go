package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dhruvdaberao/CROCO/internal/llm"
	"github.com/dhruvdaberao/CROCO/internal/logging"
	"github.com/dhruvdaberao/CROCO/internal/memory"
)

// Session is a stateful generation conversation yielding streamed
// replies. *llm.ChatSession implements it.
type Session interface {
	StreamMessage(ctx context.Context, parts []llm.Part) (<-chan string, <-chan error)
}

// SessionFunc creates the generation session bound to a system
// instruction. The orchestrator calls it at most once per process.
type SessionFunc func(systemInstruction string) Session

// Synthesizer reconciles recent dialogue into a replacement profile.
type Synthesizer interface {
	Synthesize(ctx context.Context, window []memory.Utterance, current memory.Profile) (memory.Profile, bool, error)
}

// Storage is the durable key-value and history persistence surface.
// *store.Store implements it.
type Storage interface {
	GetSetting(key string) (string, bool, error)
	PutSetting(key, value string) error
	AppendHistoryTurn(sessionID string, turnNumber int, speaker, text string, hasImage bool) error
}

// Options wires an Orchestrator's collaborators.
type Options struct {
	NewSession  SessionFunc
	Synthesizer Synthesizer
	Storage     Storage
	Clock       func() time.Time // defaults to time.Now; test hook
}

// Orchestrator owns the transcript, profile, onboarding phase, and
// session identity, and coordinates every user action.
//
// SendMessage is not reentrant: one call must finish before the next
// begins. Callers serialize through the Loading gate; the orchestrator
// itself assumes single-flight. The only concurrent writer is the
// detached synthesis goroutine, which touches nothing but the profile.
type Orchestrator struct {
	newSession SessionFunc
	synth      Synthesizer
	storage    Storage
	clock      func() time.Time
	sessionID  string

	mu       sync.Mutex
	turns    []Turn
	recorded int // turns already written to session history
	profile  memory.Profile
	userName string
	hasName  bool
	avatar   string
	phase    Phase
	loading  bool
	errMsg   string
	session  Session

	synthWG sync.WaitGroup
}

// New constructs an orchestrator, restoring identity and profile from
// storage. The onboarding phase is re-derived from what was persisted:
// no name on record means onboarding starts over, and the scripted
// greeting is seeded as the first transcript turn.
func New(opts Options) (*Orchestrator, error) {
	if opts.NewSession == nil {
		return nil, fmt.Errorf("chat: NewSession is required")
	}
	if opts.Synthesizer == nil {
		return nil, fmt.Errorf("chat: Synthesizer is required")
	}
	if opts.Storage == nil {
		return nil, fmt.Errorf("chat: Storage is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	o := &Orchestrator{
		newSession: opts.NewSession,
		synth:      opts.Synthesizer,
		storage:    opts.Storage,
		clock:      clock,
		sessionID:  uuid.NewString(),
		profile:    memory.Profile{},
	}

	name, hasName, err := opts.Storage.GetSetting(settingUserName)
	if err != nil {
		return nil, fmt.Errorf("chat: load user name: %w", err)
	}
	o.userName = name
	o.hasName = hasName

	if avatar, ok, err := opts.Storage.GetSetting(settingUserAvatar); err != nil {
		return nil, fmt.Errorf("chat: load avatar: %w", err)
	} else if ok {
		o.avatar = avatar
	}

	if raw, ok, err := opts.Storage.GetSetting(settingProfile); err != nil {
		return nil, fmt.Errorf("chat: load profile: %w", err)
	} else if ok {
		profile, err := memory.Decode(raw)
		if err != nil {
			// A corrupt stored profile is not fatal; start clean.
			logging.Get(logging.CategoryChat).Warnf("stored profile unreadable, starting empty: %v", err)
			profile = memory.Profile{}
		}
		o.profile = profile
	}

	if o.hasName {
		o.phase = PhaseChatting
	} else {
		o.phase = PhaseAwaitingName
		o.appendTurnLocked(Turn{Speaker: SpeakerAssistant, Text: greetingMessage})
	}

	logging.Chat("Orchestrator ready: session=%s phase=%s profile_keys=%d", o.sessionID, o.phase, len(o.profile))
	return o, nil
}

// SessionID identifies this process's conversation in session history.
func (o *Orchestrator) SessionID() string { return o.sessionID }

// Turns returns a snapshot copy of the transcript.
func (o *Orchestrator) Turns() []Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Turn, len(o.turns))
	copy(out, o.turns)
	return out
}

// Loading reports whether a generation call is in flight.
func (o *Orchestrator) Loading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loading
}

// Err returns the user-visible error from the last send, or "".
func (o *Orchestrator) Err() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errMsg
}

// UserName returns the persisted display name ("" until onboarding).
func (o *Orchestrator) UserName() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.userName
}

// Avatar returns the persisted avatar data URL ("" when unset).
func (o *Orchestrator) Avatar() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.avatar
}

// CurrentPhase returns the onboarding phase.
func (o *Orchestrator) CurrentPhase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Profile returns a deep copy of the current profile.
func (o *Orchestrator) Profile() memory.Profile {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.profile.Clone()
}

// SendMessage handles one user submission. Depending on the onboarding
// phase it either applies scripted effects locally or sends the message
// to the model, streaming the reply into the transcript. Failures are
// surfaced through Err, never returned or panicked.
func (o *Orchestrator) SendMessage(ctx context.Context, text, image string) {
	if o.intercept(text, image) {
		return
	}

	o.mu.Lock()
	if o.session == nil {
		o.session = o.newSession(SystemInstruction)
	}
	session := o.session
	o.loading = true
	o.errMsg = ""
	o.appendTurnLocked(Turn{Speaker: SpeakerUser, Text: text, Image: image})
	parts := o.buildPartsLocked(text, image)
	// Placeholder the streamed reply lands in. Not written to history
	// until the stream finishes, since its text is still growing.
	o.turns = append(o.turns, Turn{Speaker: SpeakerAssistant})
	o.mu.Unlock()

	streamErr := o.consumeStream(session.StreamMessage(ctx, parts))

	o.mu.Lock()
	if streamErr != nil {
		o.errMsg = fmt.Sprintf(sendFailedFormat, streamErr)
		// Roll back the placeholder only if nothing streamed in.
		// Partial replies are kept.
		if n := len(o.turns); n > 0 {
			last := o.turns[n-1]
			if last.Speaker == SpeakerAssistant && last.Text == "" {
				o.turns = o.turns[:n-1]
			}
		}
		logging.Get(logging.CategoryChat).Errorf("send failed: %v", streamErr)
	}
	o.recordPendingLocked()
	o.loading = false
	window := o.windowLocked()
	current := o.profile.Clone()
	o.mu.Unlock()

	o.spawnSynthesis(window, current)
}

// consumeStream drains the delta and error channels, growing the
// trailing assistant turn on every chunk so observers see incremental
// progress, and returns the stream's terminal error if any.
func (o *Orchestrator) consumeStream(contentChan <-chan string, errorChan <-chan error) error {
	var buf strings.Builder
	var streamErr error
	for contentChan != nil || errorChan != nil {
		select {
		case chunk, ok := <-contentChan:
			if !ok {
				contentChan = nil
				continue
			}
			buf.WriteString(chunk)
			o.mu.Lock()
			if n := len(o.turns); n > 0 && o.turns[n-1].Speaker == SpeakerAssistant {
				o.turns[n-1].Text = buf.String()
			}
			o.mu.Unlock()
		case err, ok := <-errorChan:
			if !ok {
				errorChan = nil
				continue
			}
			if err != nil && streamErr == nil {
				streamErr = err
			}
		}
	}
	return streamErr
}

// intercept applies the onboarding phase machine. It returns true when
// the input was fully handled without a generation call.
func (o *Orchestrator) intercept(text, image string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.phase {
	case PhaseAwaitingName:
		// The trimmed text is the name, whatever it is. Empty and
		// whitespace-only names are accepted verbatim.
		name := strings.TrimSpace(text)
		o.userName = name
		o.hasName = true
		o.persistSetting(settingUserName, name)
		o.appendTurnLocked(Turn{Speaker: SpeakerUser, Text: name})
		o.appendTurnLocked(Turn{Speaker: SpeakerAssistant, Text: fmt.Sprintf(avatarInviteFormat, name)})
		o.phase = PhaseAwaitingAvatar
		logging.Chat("Onboarding: name captured (%d chars)", len(name))
		return true

	case PhaseAwaitingAvatar:
		if image != "" {
			o.avatar = image
			o.persistSetting(settingUserAvatar, image)
			o.appendTurnLocked(Turn{Speaker: SpeakerUser, Image: image})
			o.appendTurnLocked(Turn{Speaker: SpeakerAssistant, Text: avatarSetMessage})
			o.phase = PhaseChatting
			logging.Chat("Onboarding: avatar captured")
			return true
		}
		// The avatar offer decays silently: any text advances to
		// chatting and the same input is processed as a normal turn.
		o.phase = PhaseChatting
		return false

	default:
		return false
	}
}

// UpdateAvatar persists a new avatar outside the onboarding flow and
// acknowledges it with a scripted turn. No generation call is made.
func (o *Orchestrator) UpdateAvatar(image string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.avatar = image
	o.persistSetting(settingUserAvatar, image)
	o.appendTurnLocked(Turn{Speaker: SpeakerAssistant, Text: avatarUpdatedMessage})
	logging.Chat("Avatar updated")
}

// buildPartsLocked assembles the outgoing payload: a context block
// (today's date and the serialized profile, or the token "empty")
// prepended to the literal user text, plus the decoded image when one
// was attached.
func (o *Orchestrator) buildPartsLocked(text, image string) []llm.Part {
	date := o.clock().Format("Monday, January 2, 2006")
	profileJSON := "empty"
	if !o.profile.Empty() {
		if encoded, err := o.profile.Encode(); err == nil {
			profileJSON = encoded
		}
	}

	payload := fmt.Sprintf("[Context | Today is %s | What you know about the user: %s]\n\n%s", date, profileJSON, text)
	parts := []llm.Part{{Text: payload}}

	if image != "" {
		mime, data, err := ParseDataURL(image)
		if err != nil {
			logging.Get(logging.CategoryChat).Warnf("dropping unreadable image attachment: %v", err)
		} else {
			parts = append(parts, llm.Part{InlineData: &llm.Blob{MIMEType: mime, Data: data}})
		}
	}
	return parts
}

// appendTurnLocked appends a finalized turn and records it to session
// history. Callers hold o.mu.
func (o *Orchestrator) appendTurnLocked(t Turn) {
	o.turns = append(o.turns, t)
	o.recordPendingLocked()
}

// recordPendingLocked writes not-yet-persisted transcript turns to the
// session history, skipping a still-streaming trailing placeholder.
// History writes are best effort.
func (o *Orchestrator) recordPendingLocked() {
	for o.recorded < len(o.turns) {
		idx := o.recorded
		t := o.turns[idx]
		if o.loading && idx == len(o.turns)-1 && t.Speaker == SpeakerAssistant && t.Text == "" {
			return
		}
		err := o.storage.AppendHistoryTurn(o.sessionID, idx+1, string(t.Speaker), t.Text, t.Image != "")
		if err != nil {
			logging.Get(logging.CategoryStore).Warnf("history write failed for turn %d: %v", idx+1, err)
		}
		o.recorded++
	}
}

// persistSetting is a fire-and-forget durable write.
func (o *Orchestrator) persistSetting(key, value string) {
	if err := o.storage.PutSetting(key, value); err != nil {
		logging.Get(logging.CategoryStore).Warnf("persist %s failed: %v", key, err)
	}
}

// windowLocked selects the trailing turns that feed synthesis.
func (o *Orchestrator) windowLocked() []memory.Utterance {
	start := 0
	if len(o.turns) > memoryWindow {
		start = len(o.turns) - memoryWindow
	}
	window := make([]memory.Utterance, 0, len(o.turns)-start)
	for _, t := range o.turns[start:] {
		window = append(window, memory.Utterance{Role: string(t.Speaker), Text: t.Text})
	}
	return window
}

// spawnSynthesis launches the detached profile update. It is never
// joined by the send path; its failure is logged and otherwise
// invisible. The profile swap is the goroutine's only shared write, so
// a concurrent next turn reads either the old or the new profile,
// never a torn one.
func (o *Orchestrator) spawnSynthesis(window []memory.Utterance, current memory.Profile) {
	o.synthWG.Add(1)
	go func() {
		defer o.synthWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		next, ok, err := o.synth.Synthesize(ctx, window, current)
		if err != nil {
			logging.Memory("synthesis skipped: %v", err)
			return
		}
		if !ok {
			return
		}

		o.mu.Lock()
		o.profile = next
		o.mu.Unlock()

		encoded, err := next.Encode()
		if err != nil {
			logging.Get(logging.CategoryMemory).Errorf("profile encode failed: %v", err)
			return
		}
		if err := o.storage.PutSetting(settingProfile, encoded); err != nil {
			logging.Get(logging.CategoryMemory).Errorf("profile persist failed: %v", err)
		}
	}()
}

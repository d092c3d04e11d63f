// Package chat implements the conversation core: the transcript, the
// onboarding phase machine, and the orchestrator that drives streamed
// generation and background profile synthesis.
package chat

// Speaker identifies the author of a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one message in the transcript. Image is a data-URL string,
// empty when the turn carries no image. Turns are append-only; the sole
// exceptions are the trailing assistant turn, whose text grows while a
// reply streams in, and the rollback of that turn when a stream fails
// before producing anything.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
	Image   string  `json:"image,omitempty"`
}

// Phase is the onboarding state gating how input is interpreted.
type Phase int

const (
	// PhaseAwaitingName: the next message is taken as the user's name.
	PhaseAwaitingName Phase = iota
	// PhaseAwaitingAvatar: an uploaded image becomes the avatar; any
	// text instead abandons the offer and is handled as normal chat.
	PhaseAwaitingAvatar
	// PhaseChatting: all input flows to generation.
	PhaseChatting
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingName:
		return "awaiting_name"
	case PhaseAwaitingAvatar:
		return "awaiting_avatar"
	default:
		return "chatting"
	}
}

// Scripted assistant lines used during onboarding and the avatar
// shortcut. These never go through the model.
const (
	greetingMessage      = "Hey, I'm Croco. What should I call you?"
	avatarInviteFormat   = "Cool name, %s. Want to set a profile pic? Just upload an image if you do."
	avatarSetMessage     = "Got it. Avatar set! Now, what's on your mind?"
	avatarUpdatedMessage = "New look, who dis? Kidding. Avatar updated."
	sendFailedFormat     = "Failed to get a response. Please try again. Error: %s"
)

// Storage persistence keys. Values mirror the store package's settings
// table; absence of a key means unset, which is distinct from an empty
// stored string (a whitespace-only name is persisted verbatim).
const (
	settingUserName   = "user_name"
	settingUserAvatar = "user_avatar"
	settingProfile    = "profile"
)

// memoryWindow is how many trailing turns feed each synthesis pass.
const memoryWindow = 10

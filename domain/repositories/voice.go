package repositories

import "context"

// TranscriptRole identifies who produced a transcript fragment
type TranscriptRole string

const (
	AssistantRole TranscriptRole = "assistant"
	UserRole      TranscriptRole = "user"
)

// Transcript is a fragment of recognized speech reported by the voice vendor
type Transcript struct {
	Role  TranscriptRole `json:"role"`
	Text  string         `json:"text"`
	Final bool           `json:"final"`
}

// CallRequest describes one narration call
type CallRequest struct {
	// SystemPrompt instructs the assistant to read the script verbatim
	SystemPrompt string
	// FirstMessage is the script itself
	FirstMessage string
	// Metadata is forwarded to the vendor for tracing
	Metadata map[string]string
}

// CallListener receives the lifecycle events of a single call.
// Implementations must not block.
type CallListener interface {
	OnCallStart()
	OnSpeechStart()
	OnSpeechEnd()
	OnCallEnd()
	OnError(message string)
	OnTranscript(transcript Transcript)
}

// VoiceCall is a live session with the voice vendor
type VoiceCall interface {
	// Stop ends the call. It is safe to call more than once.
	Stop() error
	// SetMuted pauses or resumes the assistant's speech
	SetMuted(muted bool) error
}

// VoiceProvider opens voice calls that speak a script aloud
type VoiceProvider interface {
	Start(ctx context.Context, req CallRequest, listener CallListener) (VoiceCall, error)
}

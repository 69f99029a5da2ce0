package usecase

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoActiveSession        = errors.New("no active narration session")
	ErrNoSlides               = errors.New("presentation has no slides")
	ErrNarrationBusy          = errors.New("a narration session is already starting")
	ErrNarrationCancelled     = errors.New("narration was stopped before the call started")
	ErrServiceNotInitialized  = errors.New("narration service is not initialized")
	ErrUnknownConflictAction  = errors.New("unknown conflict resolution action")
	ErrInvalidConflictOptions = errors.New("invalid conflict resolution options")
)

// ContentTooShortError rejects slide notes too short to be narrated
type ContentTooShortError struct {
	Length  int
	Minimum int
}

func (e *ContentTooShortError) Error() string {
	return fmt.Sprintf("slide notes are too short to narrate: %d characters, need at least %d", e.Length, e.Minimum)
}

// SessionStartError wraps a failure of the voice vendor to start a call
type SessionStartError struct {
	Err error
}

func (e *SessionStartError) Error() string {
	return fmt.Sprintf("failed to start narration session: %v", e.Err)
}

func (e *SessionStartError) Unwrap() error {
	return e.Err
}

// benignTerminationPhrases are vendor messages that accompany a normal call teardown
var benignTerminationPhrases = []string{
	"call ended",
	"meeting has ended",
	"ejection",
}

// IsBenignTermination reports whether a vendor error message describes a normal call end
func IsBenignTermination(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range benignTerminationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

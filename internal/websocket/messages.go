package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/slidecast/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Messages pushed to clients
const (
	MessageTypeNarrationStatus MessageType = "narration_status"
	MessageTypeWordProgress    MessageType = "word_progress"
	MessageTypeNarrationError  MessageType = "narration_error"
	MessageTypeSlideComplete   MessageType = "slide_complete"
	MessageTypeAutoAdvance     MessageType = "auto_advance"
	MessageTypePong            MessageType = "pong"
	MessageTypeError           MessageType = "error"
)

// Messages accepted from clients
const (
	MessageTypeStop   MessageType = "stop"
	MessageTypePause  MessageType = "pause"
	MessageTypeResume MessageType = "resume"
	MessageTypePing   MessageType = "ping"
)

// Error codes sent back in ErrorMessage
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeUnsupported    = "unsupported_type"
	ErrorCodeCommandFailed  = "command_failed"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

// StatusMessage carries a narration status change
type StatusMessage struct {
	BaseMessage
	Status entities.NarrationStatus `json:"status"`
}

// WordProgressMessage carries the highlight position of the current slide
type WordProgressMessage struct {
	BaseMessage
	Spoken  int `json:"spoken"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// NarrationErrorMessage carries an error reported by the narrator
type NarrationErrorMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// SlideMessage tells the UI a slide finished or that it should move to a slide
type SlideMessage struct {
	BaseMessage
	SlideIndex int `json:"slide_index"`
	SlideCount int `json:"slide_count"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response to a single client
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// ControlMessage is a command sent by a client
type ControlMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses an incoming client message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch msg.Type {
	case MessageTypeStop, MessageTypePause, MessageTypeResume, MessageTypePing:
		return &msg, nil
	case "":
		return nil, fmt.Errorf("message type is required")
	default:
		return nil, &UnsupportedTypeError{Type: msg.Type}
	}
}

// UnsupportedTypeError is returned for well-formed messages of an unknown type
type UnsupportedTypeError struct {
	Type MessageType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported message type: %s", e.Type)
}

func newBase(t MessageType, now time.Time) BaseMessage {
	return BaseMessage{Type: t, Timestamp: now.Format(time.RFC3339)}
}

// CreateStatusMessage creates a narration status message
func CreateStatusMessage(status entities.NarrationStatus, now time.Time) *StatusMessage {
	return &StatusMessage{BaseMessage: newBase(MessageTypeNarrationStatus, now), Status: status}
}

// CreateWordProgressMessage creates a word progress message
func CreateWordProgressMessage(spoken, total, percent int, now time.Time) *WordProgressMessage {
	return &WordProgressMessage{
		BaseMessage: newBase(MessageTypeWordProgress, now),
		Spoken:      spoken,
		Total:       total,
		Percent:     percent,
	}
}

// CreateNarrationErrorMessage creates a narration error message
func CreateNarrationErrorMessage(message string, now time.Time) *NarrationErrorMessage {
	return &NarrationErrorMessage{BaseMessage: newBase(MessageTypeNarrationError, now), Message: message}
}

// CreateSlideMessage creates a slide_complete or auto_advance message
func CreateSlideMessage(t MessageType, slideIndex, slideCount int, now time.Time) *SlideMessage {
	return &SlideMessage{BaseMessage: newBase(t, now), SlideIndex: slideIndex, SlideCount: slideCount}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string, now time.Time) *ErrorMessage {
	return &ErrorMessage{BaseMessage: newBase(MessageTypeError, now), Code: code, Message: message}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string, now time.Time) *PongMessage {
	return &PongMessage{BaseMessage: newBase(MessageTypePong, now), Data: data}
}

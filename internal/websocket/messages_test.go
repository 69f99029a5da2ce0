package websocket

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/satriahrh/slidecast/domain/entities"
)

func TestMessageValidator_ValidateMessage(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name            string
		message         string
		wantType        MessageType
		wantErr         bool
		wantUnsupported bool
	}{
		{name: "stop", message: `{"type":"stop"}`, wantType: MessageTypeStop},
		{name: "pause", message: `{"type":"pause","timestamp":"2024-01-01T00:00:00Z"}`, wantType: MessageTypePause},
		{name: "resume", message: `{"type":"resume"}`, wantType: MessageTypeResume},
		{name: "ping with data", message: `{"type":"ping","data":"x"}`, wantType: MessageTypePing},
		{name: "missing type", message: `{"data":"x"}`, wantErr: true},
		{name: "invalid json", message: `{"type":`, wantErr: true},
		{name: "server-only type", message: `{"type":"word_progress"}`, wantErr: true, wantUnsupported: true},
		{name: "unknown type", message: `{"type":"dance"}`, wantErr: true, wantUnsupported: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}

			var unsupported *UnsupportedTypeError
			if errors.As(err, &unsupported) != tt.wantUnsupported {
				t.Errorf("Expected unsupported=%v, got error %v", tt.wantUnsupported, err)
			}
			if err == nil && msg.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, msg.Type)
			}
		})
	}
}

func TestCreateMessages(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	progress, err := json.Marshal(CreateWordProgressMessage(3, 12, 25, now))
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	expected := `{"type":"word_progress","timestamp":"2024-05-01T12:00:00Z","spoken":3,"total":12,"percent":25}`
	if string(progress) != expected {
		t.Errorf("Expected %s, got %s", expected, progress)
	}

	status := CreateStatusMessage(entities.NarrationStatusTransitioning, now)
	if status.Type != MessageTypeNarrationStatus || status.Status != entities.NarrationStatusTransitioning {
		t.Errorf("Unexpected status message %+v", status)
	}

	errMsg := CreateErrorMessage(ErrorCodeUnsupported, "unsupported message type: dance", now)
	if errMsg.Type != MessageTypeError || errMsg.Code != ErrorCodeUnsupported {
		t.Errorf("Unexpected error message %+v", errMsg)
	}

	slide := CreateSlideMessage(MessageTypeAutoAdvance, 2, 5, now)
	if slide.Type != MessageTypeAutoAdvance || slide.SlideIndex != 2 || slide.SlideCount != 5 {
		t.Errorf("Unexpected slide message %+v", slide)
	}
}

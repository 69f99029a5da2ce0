package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/slidecast/domain/repositories"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from the peer; audio frames are large
	maxMessageSize = 1 << 20
)

// ServerMessage is a JSON control frame on the call websocket
type ServerMessage struct {
	Type           string `json:"type"`
	Status         string `json:"status,omitempty"`
	EndedReason    string `json:"endedReason,omitempty"`
	Role           string `json:"role,omitempty"`
	TranscriptType string `json:"transcriptType,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
	Error          string `json:"error,omitempty"`
	Message        string `json:"message,omitempty"`
}

// ControlMessage is posted to the call's control URL
type ControlMessage struct {
	Type    string `json:"type"`
	Control string `json:"control,omitempty"`
}

type call struct {
	id         string
	conn       *websocket.Conn
	controlURL string
	httpClient *http.Client
	listener   repositories.CallListener
	logger     *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	started bool
	ended   bool
	stopped bool
}

func newCall(id string, conn *websocket.Conn, controlURL string, httpClient *http.Client, listener repositories.CallListener, logger *zap.Logger) *call {
	return &call{
		id:         id,
		conn:       conn,
		controlURL: controlURL,
		httpClient: httpClient,
		listener:   listener,
		logger:     logger.With(zap.String("vapiCallID", id)),
	}
}

// readPump turns websocket frames into listener events until the socket closes
func (c *call) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.handleClose(err)
			return
		}

		// Binary frames carry assistant audio
		if messageType != websocket.TextMessage {
			continue
		}

		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Ignoring malformed call message", zap.Error(err))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *call) dispatch(msg ServerMessage) {
	switch msg.Type {
	case "status-update":
		switch msg.Status {
		case "in-progress":
			if c.markStarted() {
				c.listener.OnCallStart()
			}
		case "ended":
			c.logger.Info("Call ended", zap.String("endedReason", msg.EndedReason))
			if c.markEnded() {
				c.listener.OnCallEnd()
			}
		}

	case "speech-update":
		if msg.Role != "assistant" {
			return
		}
		switch msg.Status {
		case "started":
			c.listener.OnSpeechStart()
		case "stopped":
			c.listener.OnSpeechEnd()
		}

	case "transcript":
		if msg.Role != "assistant" {
			return
		}
		c.listener.OnTranscript(repositories.Transcript{
			Role:  repositories.AssistantRole,
			Text:  msg.Transcript,
			Final: msg.TranscriptType == "final",
		})

	case "hang", "error":
		message := msg.Error
		if message == "" {
			message = msg.Message
		}
		if message == "" {
			message = msg.Type
		}
		c.listener.OnError(message)

	default:
		c.logger.Debug("Unhandled call message", zap.String("type", msg.Type))
	}
}

func (c *call) handleClose(err error) {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()

	normal := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
	if !stopped && !normal {
		c.logger.Error("Call socket closed unexpectedly", zap.Error(err))
		c.listener.OnError(closeText(err))
	}

	if c.markEnded() {
		c.listener.OnCallEnd()
	}
}

func closeText(err error) string {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Text != "" {
		return closeErr.Text
	}
	return err.Error()
}

func (c *call) markStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return false
	}
	c.started = true
	return true
}

func (c *call) markEnded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return false
	}
	c.ended = true
	return true
}

// Stop implements repositories.VoiceCall
func (c *call) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	var controlErr error
	if c.controlURL != "" {
		controlErr = c.control(ControlMessage{Type: "end-call"})
		if controlErr != nil {
			c.logger.Warn("Failed to end call through control URL", zap.Error(controlErr))
		}
	}

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	closeErr := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call stopped"))
	c.writeMu.Unlock()

	if closeErr != nil && !errors.Is(closeErr, websocket.ErrCloseSent) {
		c.conn.Close()
	} else {
		// Give the vendor a moment to acknowledge the close before dropping the socket
		time.AfterFunc(writeWait, func() { c.conn.Close() })
	}
	return controlErr
}

// SetMuted implements repositories.VoiceCall
func (c *call) SetMuted(muted bool) error {
	if c.controlURL == "" {
		return fmt.Errorf("call %s does not expose a control URL", c.id)
	}

	control := "unmute-assistant"
	if muted {
		control = "mute-assistant"
	}
	return c.control(ControlMessage{Type: "control", Control: control})
}

func (c *call) control(msg ControlMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal control message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.controlURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("control %s returned error %d: %s", msg.Type, resp.StatusCode, strings.TrimSpace(string(errorBody)))
	}
	return nil
}

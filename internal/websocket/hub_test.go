package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/slidecast/domain/entities"
	"github.com/satriahrh/slidecast/usecase"
)

type fakeController struct {
	mu        sync.Mutex
	commands  []string
	resumeErr error
	snapshot  usecase.NarrationSnapshot
}

func (f *fakeController) record(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
}

func (f *fakeController) StopNarration(ctx context.Context) error {
	f.record("stop")
	return nil
}

func (f *fakeController) PauseNarration(ctx context.Context) error {
	f.record("pause")
	return nil
}

func (f *fakeController) ResumeNarration(ctx context.Context) error {
	f.record("resume")
	return f.resumeErr
}

func (f *fakeController) Status() usecase.NarrationSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeController) snapshotCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func setupTestHub(t *testing.T, controller *fakeController) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(controller, []string{"*"}, clock.NewMock(), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", hub.HandleWebSocket)
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, server, cancel
}

func dial(t *testing.T, hub *Hub, server *httptest.Server) *websocket.Conn {
	t.Helper()
	before := hub.ClientCount()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	waitFor(t, "client registration", func() bool { return hub.ClientCount() == before+1 })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode message %q: %v", data, err)
	}
	return msg
}

func sendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub(&fakeController{}, nil, nil, zaptest.NewLogger(t))

	if hub.clients == nil {
		t.Error("Hub clients map not initialized")
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels not initialized")
	}
	if hub.clock == nil {
		t.Error("Hub clock not initialized")
	}
	if !hub.allowAll {
		t.Error("An empty origin list should accept every origin")
	}
}

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub(&fakeController{}, []string{"https://slides.example.com"}, nil, zaptest.NewLogger(t))

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://slides.example.com", true},
		{"https://evil.example.com", false},
		{"", true},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := hub.checkOrigin(req); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestHub_SnapshotOnConnect(t *testing.T) {
	controller := &fakeController{snapshot: usecase.NarrationSnapshot{
		Status:  entities.NarrationStatusSpeaking,
		Spoken:  3,
		Total:   12,
		Percent: 25,
	}}
	hub, server, _ := setupTestHub(t, controller)
	conn := dial(t, hub, server)

	status := readMessage(t, conn)
	if status["type"] != string(MessageTypeNarrationStatus) || status["status"] != "speaking" {
		t.Errorf("Unexpected status snapshot %v", status)
	}

	progress := readMessage(t, conn)
	if progress["type"] != string(MessageTypeWordProgress) || progress["spoken"] != float64(3) || progress["percent"] != float64(25) {
		t.Errorf("Unexpected progress snapshot %v", progress)
	}
}

func TestHub_BroadcastsNarrationEvents(t *testing.T) {
	controller := &fakeController{snapshot: usecase.NarrationSnapshot{Status: entities.NarrationStatusIdle}}
	hub, server, _ := setupTestHub(t, controller)
	first := dial(t, hub, server)
	second := dial(t, hub, server)

	// drain the idle snapshot
	readMessage(t, first)
	readMessage(t, second)

	callbacks := hub.Callbacks()
	callbacks.OnStatusChange(entities.NarrationStatusSpeaking)
	callbacks.OnWordProgress(5, 20)
	callbacks.OnError("voice provider failed")

	controller.mu.Lock()
	controller.snapshot = usecase.NarrationSnapshot{SlideIndex: 1, SlideCount: 3, AutoAdvance: true}
	controller.mu.Unlock()
	hub.OnSlideComplete()

	controller.mu.Lock()
	controller.snapshot.SlideIndex = 2
	controller.mu.Unlock()
	hub.OnAutoAdvanceNext()

	for _, conn := range []*websocket.Conn{first, second} {
		status := readMessage(t, conn)
		if status["type"] != string(MessageTypeNarrationStatus) || status["status"] != "speaking" {
			t.Errorf("Unexpected status message %v", status)
		}

		progress := readMessage(t, conn)
		if progress["spoken"] != float64(5) || progress["total"] != float64(20) || progress["percent"] != float64(25) {
			t.Errorf("Unexpected progress message %v", progress)
		}

		narrationErr := readMessage(t, conn)
		if narrationErr["type"] != string(MessageTypeNarrationError) || narrationErr["message"] != "voice provider failed" {
			t.Errorf("Unexpected error message %v", narrationErr)
		}

		complete := readMessage(t, conn)
		if complete["type"] != string(MessageTypeSlideComplete) || complete["slide_index"] != float64(1) {
			t.Errorf("Unexpected slide_complete message %v", complete)
		}

		advance := readMessage(t, conn)
		if advance["type"] != string(MessageTypeAutoAdvance) || advance["slide_index"] != float64(2) || advance["slide_count"] != float64(3) {
			t.Errorf("Unexpected auto_advance message %v", advance)
		}
	}
}

func TestHub_ControlMessages(t *testing.T) {
	controller := &fakeController{resumeErr: errors.New("no active narration session")}
	hub, server, _ := setupTestHub(t, controller)
	conn := dial(t, hub, server)
	readMessage(t, conn)

	sendText(t, conn, `{"type":"pause"}`)
	sendText(t, conn, `{"type":"stop"}`)
	waitFor(t, "commands", func() bool { return len(controller.snapshotCommands()) == 2 })
	if got := controller.snapshotCommands(); got[0] != "pause" || got[1] != "stop" {
		t.Errorf("Unexpected commands %v", got)
	}

	sendText(t, conn, `{"type":"ping","data":"hello"}`)
	pong := readMessage(t, conn)
	if pong["type"] != string(MessageTypePong) || pong["data"] != "hello" {
		t.Errorf("Unexpected pong %v", pong)
	}

	sendText(t, conn, `{"type":"resume"}`)
	failed := readMessage(t, conn)
	if failed["type"] != string(MessageTypeError) || failed["error_code"] != ErrorCodeCommandFailed {
		t.Errorf("Unexpected resume failure %v", failed)
	}
	if !strings.Contains(failed["message"].(string), "no active narration session") {
		t.Errorf("Expected command error in message, got %v", failed["message"])
	}

	sendText(t, conn, `{"type":"dance"}`)
	unsupported := readMessage(t, conn)
	if unsupported["error_code"] != ErrorCodeUnsupported {
		t.Errorf("Unexpected reply to unknown type %v", unsupported)
	}

	sendText(t, conn, `not json`)
	invalid := readMessage(t, conn)
	if invalid["error_code"] != ErrorCodeInvalidMessage {
		t.Errorf("Unexpected reply to invalid message %v", invalid)
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, server, _ := setupTestHub(t, &fakeController{})
	conn := dial(t, hub, server)

	conn.Close()
	waitFor(t, "client removal", func() bool { return hub.ClientCount() == 0 })

	// broadcasting without clients is a no-op
	hub.Callbacks().OnStatusChange(entities.NarrationStatusStopped)
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	hub, server, cancel := setupTestHub(t, &fakeController{})
	conn := dial(t, hub, server)
	readMessage(t, conn)

	cancel()
	waitFor(t, "hub shutdown", func() bool { return hub.ClientCount() == 0 })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the connection to be closed after the hub stopped")
	}
}

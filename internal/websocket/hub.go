package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/slidecast/domain/entities"
	"github.com/satriahrh/slidecast/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	// Time allowed for a control command to complete.
	commandTimeout = 5 * time.Second

	sendBufferSize = 256
)

// NarrationController is the part of the narrator clients may drive
type NarrationController interface {
	StopNarration(ctx context.Context) error
	PauseNarration(ctx context.Context) error
	ResumeNarration(ctx context.Context) error
	Status() usecase.NarrationSnapshot
}

// Hub maintains the set of active clients and broadcasts narration events to them.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	controller     NarrationController
	validator      *MessageValidator
	upgrader       websocket.Upgrader
	allowedOrigins map[string]bool
	allowAll       bool

	clock  clock.Clock
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub. An empty origin list or "*" accepts every origin.
func NewHub(controller NarrationController, allowedOrigins []string, clk clock.Clock, logger *zap.Logger) *Hub {
	if clk == nil {
		clk = clock.New()
	}

	h := &Hub{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		controller:     controller,
		validator:      NewMessageValidator(),
		allowedOrigins: make(map[string]bool),
		allowAll:       len(allowedOrigins) == 0,
		clock:          clk,
		logger:         logger,
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			h.allowAll = true
		}
		h.allowedOrigins[origin] = true
	}

	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return h.allowAll || origin == "" || h.allowedOrigins[origin]
}

// Run starts the hub's main loop. When ctx is done every client is disconnected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))
		}
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Callbacks returns the narrator callbacks that fan events out to every client
func (h *Hub) Callbacks() usecase.Callbacks {
	return usecase.Callbacks{
		OnStatusChange: func(status entities.NarrationStatus) {
			h.Broadcast(CreateStatusMessage(status, h.clock.Now()))
		},
		OnWordProgress: func(spoken, total int) {
			h.Broadcast(CreateWordProgressMessage(spoken, total, usecase.ProgressPercent(spoken, total), h.clock.Now()))
		},
		OnError: func(message string) {
			h.Broadcast(CreateNarrationErrorMessage(message, h.clock.Now()))
		},
	}
}

// OnSlideComplete is the auto-advance hook fired when a slide finishes
func (h *Hub) OnSlideComplete() {
	snap := h.controller.Status()
	h.Broadcast(CreateSlideMessage(MessageTypeSlideComplete, snap.SlideIndex, snap.SlideCount, h.clock.Now()))
}

// OnAutoAdvanceNext is the auto-advance hook fired when the UI should show the next slide
func (h *Hub) OnAutoAdvanceNext() {
	snap := h.controller.Status()
	h.Broadcast(CreateSlideMessage(MessageTypeAutoAdvance, snap.SlideIndex, snap.SlideCount, h.clock.Now()))
}

// Broadcast sends a message to every client. Clients that cannot keep up are disconnected.
func (h *Hub) Broadcast(message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", zap.Error(err))
		return
	}

	var slow []*Client
	h.mu.RLock()
	for _, client := range h.clients {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Dropping slow client", zap.String("clientID", client.id))
		client.conn.Close()
	}
}

// snapshotMessages brings a newly connected client up to date
func (h *Hub) snapshotMessages() [][]byte {
	snap := h.controller.Status()
	now := h.clock.Now()

	messages := []any{CreateStatusMessage(snap.Status, now)}
	if snap.Total > 0 {
		messages = append(messages, CreateWordProgressMessage(snap.Spoken, snap.Total, snap.Percent, now))
	}

	var out [][]byte
	for _, m := range messages {
		payload, err := json.Marshal(m)
		if err != nil {
			continue
		}
		out = append(out, payload)
	}
	return out
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	id     string
	logger *zap.Logger
}

// HandleWebSocket handles websocket requests from the peer.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	id := uuid.NewString()
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		id:     id,
		logger: h.logger.With(zap.String("clientID", id)),
	}
	for _, payload := range h.snapshotMessages() {
		client.send <- payload
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps control messages from the websocket connection to the narrator.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
			continue
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage handles a control message from the client
func (c *Client) processMessage(message []byte) {
	now := c.hub.clock.Now()

	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		code := ErrorCodeInvalidMessage
		var unsupported *UnsupportedTypeError
		if errors.As(err, &unsupported) {
			code = ErrorCodeUnsupported
		}
		c.logger.Warn("Rejected client message", zap.Error(err))
		c.reply(CreateErrorMessage(code, err.Error(), now))
		return
	}

	if msg.Type == MessageTypePing {
		c.reply(CreatePongMessage(msg.Data, now))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch msg.Type {
	case MessageTypeStop:
		err = c.hub.controller.StopNarration(ctx)
	case MessageTypePause:
		err = c.hub.controller.PauseNarration(ctx)
	case MessageTypeResume:
		err = c.hub.controller.ResumeNarration(ctx)
	}
	if err != nil {
		c.logger.Warn("Narration command failed",
			zap.String("type", string(msg.Type)),
			zap.Error(err))
		c.reply(CreateErrorMessage(ErrorCodeCommandFailed, err.Error(), now))
		return
	}

	c.logger.Info("Narration command applied", zap.String("type", string(msg.Type)))
}

// reply sends a message to this client only
func (c *Client) reply(message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		c.logger.Error("Failed to marshal reply", zap.Error(err))
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("Dropping reply to slow client")
	}
}

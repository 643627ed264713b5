package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Pratik1445/skillfolio/internal/chat"
	"github.com/Pratik1445/skillfolio/internal/snowflake"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	queueSize      = 64
)

var ErrQueueFull = errors.New("client queue is full")

// Inbound is a message sent by the browser.
type Inbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Hub struct {
	sugar    *zap.SugaredLogger
	ids      *snowflake.Generator
	upgrader websocket.Upgrader

	clientsMutex sync.Mutex
	clients      map[int64]*Client
}

func New(sugar *zap.SugaredLogger, ids *snowflake.Generator) *Hub {
	return &Hub{
		sugar: sugar,
		ids:   ids,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		clients: make(map[int64]*Client),
	}
}

type Client struct {
	UserID    string
	SessionID int64

	hub  *Hub
	conn *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	queue chan []byte

	// only the newest state frame is worth sending
	stateMutex  sync.Mutex
	latestState []byte
	stateReady  chan struct{}
}

// Upgrade turns the request into a websocket client of userID.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, userID string) (*Client, error) {
	sessionID, err := h.ids.Generate()
	if err != nil {
		return nil, err
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		UserID:     userID,
		SessionID:  sessionID,
		hub:        h,
		conn:       conn,
		ctx:        ctx,
		cancel:     cancel,
		queue:      make(chan []byte, queueSize),
		stateReady: make(chan struct{}, 1),
	}

	h.setClient(client)
	return client, nil
}

func (h *Hub) setClient(client *Client) {
	h.sugar.Debugf("Adding user ID [%s] to clients as session ID [%d]", client.UserID, client.SessionID)
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	h.clients[client.SessionID] = client
}

func (h *Hub) deleteClient(sessionID int64) {
	h.sugar.Debugf("Removing session ID [%d] from clients", sessionID)
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	delete(h.clients, sessionID)
}

func (h *Hub) GetClient(sessionID int64) (*Client, bool) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	client, exists := h.clients[sessionID]
	return client, exists
}

func (h *Hub) Count() int {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll() {
	h.clientsMutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMutex.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

// encode frames a message as its type, a newline and the json body.
func encode(messageType string, message any) ([]byte, error) {
	jsonBytes, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(messageType) + 1 + len(jsonBytes))
	buf.WriteString(messageType)
	buf.WriteByte('\n')
	buf.Write(jsonBytes)
	return buf.Bytes(), nil
}

// Emit queues a message for the browser without blocking.
func (c *Client) Emit(messageType string, message any) error {
	frame, err := encode(messageType, message)
	if err != nil {
		return err
	}

	select {
	case c.queue <- frame:
		return nil
	default:
		return fmt.Errorf("session ID [%d]: %w", c.SessionID, ErrQueueFull)
	}
}

// Render sends the chat state, replacing a state frame that was not written
// yet.
func (c *Client) Render(state chat.State) {
	frame, err := encode(ChatState, state)
	if err != nil {
		c.hub.sugar.Error(err)
		return
	}

	c.stateMutex.Lock()
	c.latestState = frame
	c.stateMutex.Unlock()

	select {
	case c.stateReady <- struct{}{}:
	default:
	}
}

// Close ends the connection. Run returns soon after.
func (c *Client) Close() {
	c.cancel()
}

func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Run writes queued frames and hands every inbound message to onMessage until
// the connection fails or Close is called. onMessage runs on the read loop.
func (c *Client) Run(onMessage func(Inbound)) {
	defer c.hub.deleteClient(c.SessionID)
	defer c.cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	c.readLoop(onMessage)
	c.cancel()
	<-writerDone
}

func (c *Client) readLoop(onMessage func(Inbound)) {
	c.conn.SetReadLimit(maxMessageSize)
	err := c.conn.SetReadDeadline(time.Now().Add(pongWait))
	if err != nil {
		c.hub.sugar.Debug(err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// the read loop unblocks when the writer closes the connection
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.ctx.Err() == nil {
				c.hub.sugar.Debug(err)
			}
			return
		}

		var inbound Inbound
		err = json.Unmarshal(data, &inbound)
		if err != nil {
			c.hub.sugar.Debugf("Session ID [%d] sent malformed message: %v", c.SessionID, err)
			continue
		}
		onMessage(inbound)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer func() {
		err := c.conn.Close()
		if err != nil {
			c.hub.sugar.Debug(err)
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.flush()
			deadline := time.Now().Add(writeWait)
			closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, closeMessage, deadline)
			return
		case frame := <-c.queue:
			if !c.write(frame) {
				return
			}
		case <-c.stateReady:
			c.stateMutex.Lock()
			frame := c.latestState
			c.latestState = nil
			c.stateMutex.Unlock()

			if frame != nil && !c.write(frame) {
				return
			}
		case <-ticker.C:
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			if err != nil {
				c.hub.sugar.Debug(err)
				return
			}
		}
	}
}

// flush writes what was queued before the client was closed.
func (c *Client) flush() {
	for {
		select {
		case frame := <-c.queue:
			if !c.write(frame) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(frame []byte) bool {
	err := c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err == nil {
		err = c.conn.WriteMessage(websocket.TextMessage, frame)
	}
	if err != nil {
		c.hub.sugar.Debug(err)
		c.cancel()
		return false
	}
	return true
}

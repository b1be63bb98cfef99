// Package websocket pushes workspace state to connected views and relays
// their events, window notifications and confirmation replies back.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/conneroisu/popcode/internal/logging"
)

const (
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	pingInterval   = 54 * time.Second
	sendBuffer     = 256
	messagesPerSec = 50
	messageBurst   = 100
)

// Manager is the connection hub. A single goroutine owns registration and
// broadcasting; each client has its own read and write pumps.
type Manager struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	originValidator OriginValidator
	handlers        map[string]Handler
	handlersMutex   sync.RWMutex
	onConnect       func(*Client)
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	isShutdown   atomic.Bool
}

// NewManager creates a Manager and starts its hub.
func NewManager(originValidator OriginValidator, logger logging.Logger) *Manager {
	if originValidator == nil {
		originValidator = AllowedOrigins(nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		clients:         make(map[*websocket.Conn]*Client),
		broadcast:       make(chan []byte, sendBuffer),
		register:        make(chan *Client, 32),
		unregister:      make(chan *websocket.Conn, 32),
		originValidator: originValidator,
		handlers:        make(map[string]Handler),
		logger:          logger.WithComponent("websocket"),
		ctx:             ctx,
		cancel:          cancel,
	}
	go m.runHub()
	return m
}

// Handle routes client messages of msgType to h.
func (m *Manager) Handle(msgType string, h Handler) {
	m.handlersMutex.Lock()
	defer m.handlersMutex.Unlock()
	m.handlers[msgType] = h
}

// OnConnect registers a callback that may greet each new client, e.g. with
// the current state.
func (m *Manager) OnConnect(fn func(*Client)) {
	m.onConnect = fn
}

// HandleWebSocket upgrades the request and serves the client.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if m.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if origin != "" && !sameHost(origin, r.Host) && !m.originValidator.IsAllowedOrigin(origin) {
		m.logger.Warn(r.Context(), nil, "WebSocket connection rejected", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin already checked above.
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		m.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		lastActivity: time.Now(),
		limiter:      rate.NewLimiter(rate.Limit(messagesPerSec), messageBurst),
		registered:   make(chan struct{}),
	}

	select {
	case m.register <- client:
	case <-m.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "Server shutting down")
		return
	}
	select {
	case <-client.registered:
	case <-m.ctx.Done():
		return
	}

	if m.onConnect != nil {
		m.onConnect(client)
	}
	m.handleClient(client)
}

func sameHost(origin, host string) bool {
	for _, scheme := range []string{"http://", "https://"} {
		if origin == scheme+host {
			return true
		}
	}
	return false
}

func (m *Manager) runHub() {
	for {
		select {
		case client := <-m.register:
			m.clientsMutex.Lock()
			m.clients[client.conn] = client
			count := len(m.clients)
			m.clientsMutex.Unlock()
			close(client.registered)
			m.logger.Debug(m.ctx, "WebSocket client connected", "clients", count)

		case conn := <-m.unregister:
			m.unregisterClient(conn)

		case message := <-m.broadcast:
			m.broadcastToClients(message)

		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) unregisterClient(conn *websocket.Conn) {
	m.clientsMutex.Lock()
	client, exists := m.clients[conn]
	if exists {
		delete(m.clients, conn)
		close(client.send)
	}
	count := len(m.clients)
	m.clientsMutex.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		m.logger.Debug(m.ctx, "WebSocket client disconnected", "clients", count)
	}
}

func (m *Manager) broadcastToClients(message []byte) {
	m.clientsMutex.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clientsMutex.RUnlock()

	for _, client := range clients {
		m.enqueue(client, message)
	}
}

// enqueue drops clients whose send buffer is full.
func (m *Manager) enqueue(client *Client, message []byte) {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	if _, ok := m.clients[client.conn]; !ok {
		return
	}
	select {
	case client.send <- message:
	default:
		go func() {
			select {
			case m.unregister <- client.conn:
			case <-m.ctx.Done():
			}
		}()
	}
}

func (m *Manager) handleClient(client *Client) {
	defer func() {
		select {
		case m.unregister <- client.conn:
		case <-m.ctx.Done():
		}
	}()

	go m.writeToClient(client)
	m.readFromClient(client)
}

func (m *Manager) readFromClient(client *Client) {
	for {
		ctx, cancel := context.WithTimeout(m.ctx, readTimeout)
		_, data, err := client.conn.Read(ctx)
		cancel()
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && m.ctx.Err() == nil {
				m.logger.Debug(m.ctx, "WebSocket read ended", "error", err.Error())
			}
			return
		}

		client.lastActivity = time.Now()
		if !client.limiter.Allow() {
			m.logger.Warn(m.ctx, nil, "WebSocket message rate limit exceeded")
			return
		}
		m.processClientMessage(data)
	}
}

func (m *Manager) writeToClient(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(m.ctx, writeTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				m.logger.Debug(m.ctx, "WebSocket write failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(m.ctx, writeTimeout)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) processClientMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		m.logger.Warn(m.ctx, err, "Malformed WebSocket message", "bytes", len(data))
		return
	}

	m.handlersMutex.RLock()
	handler, ok := m.handlers[msg.Type]
	m.handlersMutex.RUnlock()
	if !ok {
		m.logger.Debug(m.ctx, "Unhandled WebSocket message", "type", msg.Type)
		return
	}
	handler(msg)
}

// Broadcast sends msg to every connected client. It reports false when the
// message was dropped.
func (m *Manager) Broadcast(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error(m.ctx, err, "Cannot encode WebSocket message", "type", msg.Type)
		return false
	}
	if m.isShutdown.Load() {
		return false
	}

	select {
	case m.broadcast <- data:
		return true
	case <-m.ctx.Done():
		return false
	default:
		m.logger.Warn(m.ctx, nil, "Broadcast channel full, dropping message", "type", msg.Type)
		return false
	}
}

// Send sends msg to one client.
func (m *Manager) Send(client *Client, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", msg.Type, err)
	}
	m.enqueue(client, data)
	return nil
}

// StateMessage wraps a payload as a state frame.
func StateMessage(payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding state: %w", err)
	}
	return Message{Type: TypeState, Payload: data}, nil
}

// ConnectedClients returns the number of connected clients.
func (m *Manager) ConnectedClients() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}

// Shutdown closes every connection and stops the hub.
func (m *Manager) Shutdown(_ context.Context) error {
	m.shutdownOnce.Do(func() {
		m.isShutdown.Store(true)
		m.cancel()

		m.clientsMutex.Lock()
		for conn, client := range m.clients {
			close(client.send)
			_ = conn.Close(websocket.StatusGoingAway, "Server shutdown")
		}
		m.clients = make(map[*websocket.Conn]*Client)
		m.clientsMutex.Unlock()

		m.logger.Info(context.Background(), "WebSocket manager shut down")
	})
	return nil
}

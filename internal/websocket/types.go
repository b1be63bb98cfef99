package websocket

import (
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"
)

// Message types exchanged with the view layer.
const (
	// Server to client.
	TypeState          = "state"
	TypeWindowOpen     = "window.open"
	TypeWindowNavigate = "window.navigate"
	TypeWindowClose    = "window.close"
	TypeConfirm        = "confirm"

	// Client to server.
	TypeEvent        = "event"
	TypeWindowClosed = "window.closed"
	TypeConfirmReply = "confirm.reply"
)

// Message is one frame on the socket.
type Message struct {
	Type      string          `json:"type"`
	WindowID  string          `json:"windowId,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	URL       string          `json:"url,omitempty"`
	Prompt    string          `json:"prompt,omitempty"`
	Accepted  bool            `json:"accepted,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Client is one connected view.
type Client struct {
	conn         *websocket.Conn
	send         chan []byte
	lastActivity time.Time
	limiter      *rate.Limiter
	registered   chan struct{}
}

// OriginValidator decides which origins may connect.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// AllowedOrigins accepts a fixed list of origins. An empty list accepts
// only same-host connections, which carry no Origin header or a matching one.
type AllowedOrigins []string

// IsAllowedOrigin implements OriginValidator.
func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	for _, allowed := range a {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Handler receives client messages of one type.
type Handler func(msg Message)

// Package server exposes a workspace controller over HTTP and a websocket.
// The view layer reads the derived workspace state from /api/state or the
// state frames pushed over /ws, and sends UI events back through
// POST /api/events or event frames on the socket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/popcode/internal/config"
	"github.com/conneroisu/popcode/internal/logging"
	"github.com/conneroisu/popcode/internal/websocket"
	"github.com/conneroisu/popcode/internal/workspace"
)

const (
	maxEventBytes     = 1 << 20
	readHeaderTimeout = 10 * time.Second
)

// Server serves one workspace.
type Server struct {
	config     config.ServerConfig
	controller *workspace.Controller
	ws         *websocket.Manager
	logger     logging.Logger

	httpServer  *http.Server
	serverMutex sync.RWMutex

	// ctx is the lifetime of the server; the workspace and remote event
	// dispatch run on it rather than on request contexts.
	ctx         context.Context
	cancel      context.CancelFunc
	initialGist string
	startOnce   sync.Once

	unsubscribe  func()
	shutdownOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithInitialGist starts the workspace with the given gist when the server
// starts instead of waiting for the first page load.
func WithInitialGist(gistID string) Option {
	return func(s *Server) {
		s.initialGist = gistID
	}
}

// New creates a Server. Controller state changes are pushed to every client
// of ws, and event frames received on ws are dispatched to controller.
func New(cfg config.ServerConfig, controller *workspace.Controller, ws *websocket.Manager, logger logging.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     cfg,
		controller: controller,
		ws:         ws,
		logger:     logger.WithComponent("server"),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	ws.Handle(websocket.TypeEvent, s.handleEventFrame)
	ws.OnConnect(s.greet)
	s.unsubscribe = controller.Subscribe(s.pushState)
	return s
}

// Handler returns the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/unload", s.handleUnload)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ws", s.ws.HandleWebSocket)

	security := DefaultSecurityConfig()
	security.AllowedOrigins = s.config.AllowedOrigins
	security.Logger = s.logger

	return s.withCORS(s.withRequestLogging(SecurityMiddleware(security)(mux)))
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s.initialGist != "" {
		s.startWorkspace(s.initialGist)
	}

	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Server shutdown incomplete")
		}
	}()

	s.logger.Info(ctx, "Serving workspace", "addr", listener.Addr().String())
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// startWorkspace starts the controller once, with gistID as the initial
// gist. Later calls are ignored whatever their gist.
func (s *Server) startWorkspace(gistID string) {
	s.startOnce.Do(func() {
		s.controller.Start(s.ctx, gistID)
	})
}

func (s *Server) pushState(model workspace.ReadModel) {
	msg, err := websocket.StateMessage(model)
	if err != nil {
		s.logger.Error(s.ctx, err, "Cannot encode workspace state")
		return
	}
	s.ws.Broadcast(msg)
}

func (s *Server) greet(client *websocket.Client) {
	msg, err := websocket.StateMessage(s.controller.ReadModel())
	if err != nil {
		s.logger.Error(s.ctx, err, "Cannot encode workspace state")
		return
	}
	if err := s.ws.Send(client, msg); err != nil {
		s.logger.Warn(s.ctx, err, "Cannot greet WebSocket client")
	}
}

// handleEventFrame runs off the socket read loop: an export may wait for a
// confirm reply that arrives on that same loop.
func (s *Server) handleEventFrame(msg websocket.Message) {
	event, err := workspace.DecodeEvent(msg.Payload)
	if err != nil {
		s.logger.Warn(s.ctx, err, "Rejected WebSocket event")
		return
	}
	go func() {
		if err := s.controller.Dispatch(s.ctx, event); err != nil {
			s.logger.Warn(s.ctx, err, "WebSocket event failed", "event", event.EventType())
		}
	}()
}

// Shutdown stops accepting requests, closes every socket and detaches from
// the controller.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")
		s.unsubscribe()

		if err := s.ws.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, err, "WebSocket shutdown incomplete")
		}

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}

		s.cancel()
		s.controller.Wait()
	})
	return shutdownErr
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

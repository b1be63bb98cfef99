package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/popcode/internal/export"
	"github.com/conneroisu/popcode/internal/validation"
)

// ErrNoClients is returned when an action needs a connected view.
var ErrNoClients = errors.New("no connected clients")

// ErrWindowClosed is returned when navigating a closed window.
var ErrWindowClosed = errors.New("window is closed")

// RemoteWindows opens secondary windows in the connected views.
type RemoteWindows struct {
	manager *Manager
	mu      sync.Mutex
	windows map[string]*remoteWindow
}

// NewRemoteWindows creates an export.Opener backed by m.
func NewRemoteWindows(m *Manager) *RemoteWindows {
	r := &RemoteWindows{manager: m, windows: make(map[string]*remoteWindow)}
	m.Handle(TypeWindowClosed, func(msg Message) {
		r.markClosed(msg.WindowID)
	})
	return r
}

var _ export.Opener = (*RemoteWindows)(nil)

// Open implements export.Opener.
func (r *RemoteWindows) Open(_ context.Context, url string) (export.Window, error) {
	if r.manager.ConnectedClients() == 0 {
		return nil, ErrNoClients
	}
	w := &remoteWindow{id: uuid.NewString(), owner: r}
	r.mu.Lock()
	r.windows[w.id] = w
	r.mu.Unlock()

	if !r.manager.Broadcast(Message{Type: TypeWindowOpen, WindowID: w.id, URL: url}) {
		r.forget(w.id)
		return nil, ErrNoClients
	}
	return w, nil
}

func (r *RemoteWindows) markClosed(id string) {
	r.mu.Lock()
	w, ok := r.windows[id]
	delete(r.windows, id)
	r.mu.Unlock()
	if ok {
		w.closed.Store(true)
	}
}

func (r *RemoteWindows) forget(id string) {
	r.mu.Lock()
	delete(r.windows, id)
	r.mu.Unlock()
}

// Pending returns the number of windows that are open and not yet navigated.
func (r *RemoteWindows) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

type remoteWindow struct {
	id     string
	owner  *RemoteWindows
	closed atomic.Bool
}

func (w *remoteWindow) Closed() bool {
	return w.closed.Load()
}

func (w *remoteWindow) Navigate(url string) error {
	if w.closed.Load() {
		return ErrWindowClosed
	}
	if err := validation.ValidateNavigationURL(url); err != nil {
		return err
	}
	if !w.owner.manager.Broadcast(Message{Type: TypeWindowNavigate, WindowID: w.id, URL: url}) {
		return ErrNoClients
	}
	w.owner.forget(w.id)
	return nil
}

func (w *remoteWindow) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	w.owner.forget(w.id)
	w.owner.manager.Broadcast(Message{Type: TypeWindowClose, WindowID: w.id})
	return nil
}

// RemoteConfirmer asks the connected views a yes/no question. Without a
// connected view, or when no reply arrives in time, the answer is no.
type RemoteConfirmer struct {
	manager *Manager
	timeout time.Duration
	mu      sync.Mutex
	pending map[string]chan bool
}

// NewRemoteConfirmer creates an export.Confirmer backed by m.
func NewRemoteConfirmer(m *Manager, timeout time.Duration) *RemoteConfirmer {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	c := &RemoteConfirmer{manager: m, timeout: timeout, pending: make(map[string]chan bool)}
	m.Handle(TypeConfirmReply, func(msg Message) {
		c.resolve(msg.RequestID, msg.Accepted)
	})
	return c
}

var _ export.Confirmer = (*RemoteConfirmer)(nil)

// Confirm implements export.Confirmer.
func (c *RemoteConfirmer) Confirm(ctx context.Context, prompt string) bool {
	if c.manager.ConnectedClients() == 0 {
		return false
	}
	id := uuid.NewString()
	reply := make(chan bool, 1)
	c.mu.Lock()
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if !c.manager.Broadcast(Message{Type: TypeConfirm, RequestID: id, Prompt: prompt}) {
		return false
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case accepted := <-reply:
		return accepted
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *RemoteConfirmer) resolve(id string, accepted bool) {
	c.mu.Lock()
	reply, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case reply <- accepted:
	default:
	}
}

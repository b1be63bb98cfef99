// Package store holds the single workspace state and applies intents to it.
// Every transition goes through Apply or ApplyIf so readers always observe a
// consistent snapshot.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/conneroisu/popcode/internal/logging"
)

// Listener receives every snapshot produced by an applied intent.
type Listener func(State)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used to stamp project updates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInitialState seeds the store.
func WithInitialState(state State) Option {
	return func(s *Store) {
		s.state = state
	}
}

// Store serializes state transitions.
type Store struct {
	mu        sync.RWMutex
	state     State
	now       func() time.Time
	logger    logging.Logger
	listeners map[int]Listener
	nextID    int
}

// New creates a store in the Initial state.
func New(logger logging.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Store{
		state:     Initial(),
		now:       time.Now,
		logger:    logger.WithComponent("store"),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Apply reduces intent into the state and notifies listeners.
func (s *Store) Apply(ctx context.Context, intent Intent) State {
	next, _ := s.ApplyIf(ctx, nil, intent)
	return next
}

// ApplyIf applies intent only when pred accepts the current state. The check
// and the transition happen under one lock. A nil pred always accepts.
func (s *Store) ApplyIf(ctx context.Context, pred func(State) bool, intent Intent) (State, bool) {
	s.mu.Lock()
	if pred != nil && !pred(s.state) {
		current := s.state
		s.mu.Unlock()
		s.logger.Debug(ctx, "Intent rejected", "intent", intent.Name(), "version", current.version)
		return current, false
	}
	next := intent.reduce(s.state, s.now())
	next.version = s.state.version + 1
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.logger.Debug(ctx, "Intent applied", "intent", intent.Name(), "version", next.version)
	for _, l := range listeners {
		l(next)
	}
	return next, true
}

// Subscribe registers l for every future snapshot and returns a function that
// removes it. Listeners run outside the store lock, so a listener may observe
// snapshots out of order under concurrent writers; compare Version to drop
// stale ones.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

package session

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/services"
)

// Snapshot is the session state at one point in time. A nil Identity means nobody is signed in.
type Snapshot struct {
	Identity *models.Identity
	Loading  bool
}

// Authenticated reports a settled session with an identity.
func (s Snapshot) Authenticated() bool {
	return !s.Loading && s.Identity != nil
}

// Store holds the current identity and loading flag for the lifetime of the process.
//
// Only the provider's notifications and the [Gateway] write to it.
type Store struct {
	provider services.IdentityProvider
	logger   *log.Logger

	mu       sync.RWMutex
	snap     Snapshot
	watchers map[int]chan Snapshot
	nextID   int
	dispose  func()
	closed   bool

	startOnce sync.Once
	startErr  error
	closeOnce sync.Once
}

// NewStore creates a store in the loading state.
func NewStore(provider services.IdentityProvider, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{
		provider: provider,
		logger:   logger,
		snap:     Snapshot{Loading: true},
		watchers: make(map[int]chan Snapshot),
	}
}

// Start subscribes to the provider's notifications. Only the first call subscribes.
//
// When the subscription fails the last known identity is kept and loading settles, so views are never stuck.
func (s *Store) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		dispose, err := s.provider.OnAuthStateChange(ctx, s.handle)
		if err != nil {
			s.logger.Error("auth state subscription failed", "error", err)
			s.startErr = err
			s.setLoading(false)
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			dispose()
			return
		}
		s.dispose = dispose
		s.mu.Unlock()
	})
	return s.startErr
}

func (s *Store) handle(ev services.AuthEvent) {
	s.logger.Debug("auth state changed", "event", ev.Kind, "user", ev.Identity.DisplayName())
	s.set(Snapshot{Identity: ev.Identity, Loading: false})
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// CurrentIdentity returns the signed-in identity or nil.
func (s *Store) CurrentIdentity() *models.Identity {
	return s.Snapshot().Identity
}

// IsLoading reports whether the session has not settled yet.
func (s *Store) IsLoading() bool {
	return s.Snapshot().Loading
}

// Watch returns a channel that receives the current snapshot and then the latest one after every change.
// Slow readers only see the newest snapshot. The returned func stops delivery and closes the channel.
func (s *Store) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	ch <- s.snap
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// Close releases the provider subscription and closes every watcher.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		dispose := s.dispose
		s.dispose = nil
		for id, ch := range s.watchers {
			delete(s.watchers, id)
			close(ch)
		}
		s.mu.Unlock()

		if dispose != nil {
			dispose()
		}
	})
}

func (s *Store) set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.snap = snap
	s.broadcast()
}

func (s *Store) setLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.snap.Loading == loading {
		return
	}
	s.snap.Loading = loading
	s.broadcast()
}

// broadcast replaces whatever a watcher has not read yet with the current snapshot. Callers hold mu.
func (s *Store) broadcast() {
	for _, ch := range s.watchers {
		select {
		case ch <- s.snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s.snap:
			default:
			}
		}
	}
}

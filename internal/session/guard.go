package session

import (
	"context"

	"github.com/desertthunder/dronewatch/internal/models"
)

// State is the route guard's view of the session.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// StateOf classifies a snapshot. Loading wins over identity.
func StateOf(s Snapshot) State {
	switch {
	case s.Loading:
		return StateLoading
	case s.Identity == nil:
		return StateUnauthenticated
	default:
		return StateAuthenticated
	}
}

// Outcome is what a view should do for a route.
type Outcome int

const (
	Render Outcome = iota
	Suspend
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Suspend:
		return "suspend"
	default:
		return "redirect"
	}
}

// Decision is the guard's answer for one route. Target is set for redirects.
type Decision struct {
	Outcome Outcome
	Target  models.Route
}

// Decide applies the redirect policy to a snapshot. Public routes always render.
func Decide(s Snapshot, route models.Route) Decision {
	if route.Canonical().Public() {
		return Decision{Outcome: Render}
	}
	switch StateOf(s) {
	case StateLoading:
		return Decision{Outcome: Suspend}
	case StateUnauthenticated:
		return Decision{Outcome: Redirect, Target: models.RouteLogin}
	default:
		return Decision{Outcome: Render}
	}
}

// Transition is a change of guard state.
type Transition struct {
	From     State
	To       State
	Snapshot Snapshot
}

// Guard evaluates the redirect policy against a [Store].
type Guard struct {
	store *Store
}

// NewGuard creates a guard over store.
func NewGuard(store *Store) *Guard {
	return &Guard{store: store}
}

// State returns the current guard state.
func (g *Guard) State() State {
	return StateOf(g.store.Snapshot())
}

// Snapshot returns the store's current snapshot.
func (g *Guard) Snapshot() Snapshot {
	return g.store.Snapshot()
}

// Decide evaluates route against the current session.
func (g *Guard) Decide(route models.Route) Decision {
	return Decide(g.store.Snapshot(), route)
}

// Transitions emits a [Transition] each time the store's state changes, starting from the state at subscription.
// The channel closes when ctx ends or the store closes.
func (g *Guard) Transitions(ctx context.Context) <-chan Transition {
	out := make(chan Transition)
	snaps, stop := g.store.Watch()

	// Watch buffers the current snapshot, so the starting state is read before any later change can replace it.
	first, ok := <-snaps
	if !ok {
		stop()
		close(out)
		return out
	}
	prev := StateOf(first)

	go func() {
		defer close(out)
		defer stop()

		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-snaps:
				if !ok {
					return
				}
				st := StateOf(snap)
				if st == prev {
					continue
				}

				select {
				case out <- Transition{From: prev, To: st, Snapshot: snap}:
				case <-ctx.Done():
					return
				}
				prev = st
			}
		}
	}()
	return out
}

// Run calls fn for every transition until ctx ends or the store closes.
func (g *Guard) Run(ctx context.Context, fn func(Transition)) {
	for t := range g.Transitions(ctx) {
		fn(t)
	}
}

// package services defines clients for the external collaborators of the dashboard
//
// Identity provider (GoTrue), settings table (PostgREST), detections backend
package services

import (
	"context"
	"net/http"

	"github.com/desertthunder/dronewatch/internal/models"
)

// AuthEventKind names an identity provider notification.
type AuthEventKind string

const (
	InitialSession AuthEventKind = "INITIAL_SESSION"
	SignedIn       AuthEventKind = "SIGNED_IN"
	SignedOut      AuthEventKind = "SIGNED_OUT"
	TokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	UserUpdated    AuthEventKind = "USER_UPDATED"
)

// AuthEvent is one auth-state change. Identity is nil when there is no session.
type AuthEvent struct {
	Kind     AuthEventKind
	Identity *models.Identity
}

// IdentityProvider is the external authentication service of record.
type IdentityProvider interface {
	// SignInWithPassword exchanges credentials for a session.
	// Listeners receive [SignedIn] before it returns.
	SignInWithPassword(ctx context.Context, email, password string) (*models.Identity, error)

	// SignUp registers a new account. It does not start a session.
	SignUp(ctx context.Context, email, password string) (*models.Identity, error)

	// SignOut ends the session. Local session state is cleared even when the provider call fails.
	SignOut(ctx context.Context) error

	// OnAuthStateChange registers fn for notifications and returns its disposer.
	// An [InitialSession] event is delivered once the stored session has been recovered.
	OnAuthStateChange(ctx context.Context, fn func(AuthEvent)) (unsubscribe func(), err error)
}

// SettingsTable is the provider-hosted table of per-user settings rows.
type SettingsTable interface {
	Select(ctx context.Context, uid string) ([]models.Settings, error)
	Insert(ctx context.Context, row models.Settings) error
	Update(ctx context.Context, uid, address string) error
}

// HTTPClientSource hands out clients that carry the caller's credentials.
type HTTPClientSource interface {
	HTTPClient(ctx context.Context) *http.Client
}

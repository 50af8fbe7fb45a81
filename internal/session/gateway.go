package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/services"
	"github.com/desertthunder/dronewatch/internal/shared"
)

const (
	SignupNotice        = "Account created successfully!"
	SignupRedirectDelay = 2 * time.Second
)

// LocalCache is the persisted read cache of the last-known identity.
type LocalCache interface {
	Save(identity *models.Identity) error
	Clear() error
}

// SignupResult tells the caller what to show and where to go afterwards.
type SignupResult struct {
	Notice   string
	Redirect models.Route
	After    time.Duration
	Identity *models.Identity
}

// Gateway performs login, logout and signup against the identity provider and records the outcome in the [Store].
type Gateway struct {
	store    *Store
	provider services.IdentityProvider
	cache    LocalCache
	logger   *log.Logger
}

// NewGateway wires a gateway. A nil cache disables the persisted identity cache.
func NewGateway(store *Store, provider services.IdentityProvider, cache LocalCache, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Gateway{store: store, provider: provider, cache: cache, logger: logger}
}

func credentialsError(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", shared.ErrValidation)
	}
	return nil
}

// Login signs in with a single attempt and returns the route to navigate to.
//
// The provider's SIGNED_IN notification has been applied to the store before Login returns.
// On failure the identity is left as it was and the provider's error is returned.
func (g *Gateway) Login(ctx context.Context, email, password string) (models.Route, error) {
	if err := credentialsError(email, password); err != nil {
		return "", err
	}

	g.store.setLoading(true)
	identity, err := g.provider.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		g.store.setLoading(false)
		g.logger.Warn("login failed", "email", email, "error", err)
		return "", err
	}

	if g.cache != nil {
		if err := g.cache.Save(identity); err != nil {
			g.logger.Warn("failed to cache identity", "error", err)
		}
	}

	g.store.set(Snapshot{Identity: identity, Loading: false})
	g.logger.Info("logged in", "user", identity.DisplayName())
	return models.RouteHome, nil
}

// Logout clears local state and signs out at the provider on a best-effort basis.
func (g *Gateway) Logout(ctx context.Context) models.Route {
	if g.cache != nil {
		if err := g.cache.Clear(); err != nil {
			g.logger.Warn("failed to clear identity cache", "error", err)
		}
	}

	g.store.set(Snapshot{Identity: nil, Loading: true})
	if err := g.provider.SignOut(ctx); err != nil {
		g.logger.Error("error logging out", "error", err)
	}
	g.store.setLoading(false)

	g.logger.Info("logged out")
	return models.RouteLogin
}

// Signup registers an account. The caller shows Notice and navigates to Redirect after the delay.
func (g *Gateway) Signup(ctx context.Context, email, password string) (SignupResult, error) {
	if err := credentialsError(email, password); err != nil {
		return SignupResult{}, err
	}

	identity, err := g.provider.SignUp(ctx, strings.TrimSpace(email), password)
	if err != nil {
		g.logger.Warn("signup failed", "email", email, "error", err)
		return SignupResult{}, err
	}

	return SignupResult{
		Notice:   SignupNotice,
		Redirect: models.RouteLogin,
		After:    SignupRedirectDelay,
		Identity: identity,
	}, nil
}

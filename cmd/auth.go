package main

import (
	"context"
	"time"

	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/session"
	"github.com/urfave/cli/v3"
)

// sessionStatus is the JSON shape of `auth status`.
type sessionStatus struct {
	State    string           `json:"state"`
	Identity *models.Identity `json:"identity,omitempty"`
	Cached   *models.Identity `json:"cached,omitempty"`
}

// AuthLogin signs in with a single attempt. The provider keeps the token for later commands.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.awaitSession(ctx); err != nil {
		return err
	}

	email := cmd.String("email")
	r.logger.Info("signing in", "email", email)

	if _, err := r.gateway.Login(ctx, email, cmd.String("password")); err != nil {
		return err
	}

	return r.writePlain("✓ Signed in as %s\n", r.store.CurrentIdentity().DisplayName())
}

// AuthLogout clears the cached identity and signs out at the provider.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	snap, err := r.awaitSession(ctx)
	if err != nil {
		return err
	}
	if snap.Identity == nil {
		r.logger.Info("no active session")
	}

	r.gateway.Logout(ctx)
	return r.writePlain("✓ Signed out\n")
}

// AuthSignup registers an account. Signing in is left to `auth login`.
func (r *Runner) AuthSignup(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.awaitSession(ctx); err != nil {
		return err
	}

	email := cmd.String("email")
	res, err := r.gateway.Signup(ctx, email, cmd.String("password"))
	if err != nil {
		return err
	}

	r.writePlain("✓ %s\n", res.Notice)
	return r.writePlain("Sign in with: dronewatch auth login --email %s\n", email)
}

// AuthStatus reports the provider's session alongside the locally cached identity.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	snap, err := r.awaitSession(ctx)
	if err != nil {
		return err
	}

	cached, err := r.cache.Load()
	if err != nil {
		r.logger.Warn("failed to read identity cache", "error", err)
	}

	status := sessionStatus{State: session.StateOf(snap).String(), Identity: snap.Identity, Cached: cached}
	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlainHeader("Session")
	r.writePlain("State: %s\n", status.State)
	if snap.Identity != nil {
		r.writePlain("User: %s\n", snap.Identity.DisplayName())
		if at := snap.Identity.LastSignInAt; at != nil {
			r.writePlain("Last sign-in: %s\n", at.Local().Format(time.DateTime))
		}
	} else {
		r.writePlain("User: ✗ Not signed in\n")
	}

	if cached != nil {
		return r.writePlain("Cached identity: %s\n", cached.DisplayName())
	}
	return r.writePlain("Cached identity: none\n")
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/shared"
	"golang.org/x/oauth2"
)

// TokenStore persists the provider session between runs.
// LoadToken returns nil, nil when nothing is stored.
type TokenStore interface {
	LoadToken() (*oauth2.Token, error)
	SaveToken(tok *oauth2.Token) error
	ClearToken() error
}

// GoTrueClient implements [IdentityProvider] against a GoTrue auth server.
//
// Sessions are held as [oauth2.Token] values so requests to other provider APIs can go through an [oauth2.Transport]
// that refreshes expired access tokens with the stored refresh token.
type GoTrueClient struct {
	authURL string
	http    *http.Client
	store   TokenStore
	logger  *log.Logger

	mu        sync.Mutex
	token     *oauth2.Token
	identity  *models.Identity
	epoch     uint64 // bumped by sign-in and sign-out
	listeners map[int]func(AuthEvent)
	nextID    int

	emitMu sync.Mutex // orders event delivery
}

// sessionResponse is the body of a successful token grant.
type sessionResponse struct {
	AccessToken  string          `json:"access_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int64           `json:"expires_in"`
	ExpiresAt    int64           `json:"expires_at"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user"`
}

func (s sessionResponse) oauth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
	}
	switch {
	case s.ExpiresAt > 0:
		tok.Expiry = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		tok.Expiry = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return tok
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewGoTrueClient creates a client for the provider rooted at providerURL (the /auth/v1 suffix is added).
// A nil store keeps the session in memory only.
func NewGoTrueClient(cfg shared.ProviderConfig, client *http.Client, store TokenStore, logger *log.Logger) *GoTrueClient {
	base := &http.Client{Transport: &apiKeyTransport{key: cfg.AnonKey}}
	if client != nil {
		base.Transport = &apiKeyTransport{key: cfg.AnonKey, base: client.Transport}
		base.Timeout = client.Timeout
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &GoTrueClient{
		authURL:   strings.TrimSuffix(cfg.URL, "/") + "/auth/v1",
		http:      base,
		store:     store,
		logger:    logger,
		listeners: make(map[int]func(AuthEvent)),
	}
}

// SignInWithPassword performs the password grant.
func (c *GoTrueClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Identity, error) {
	var sess sessionResponse
	if err := c.do(ctx, c.http, http.MethodPost, "/token?grant_type=password", credentials{email, password}, &sess); err != nil {
		return nil, err
	}

	identity, err := models.ParseIdentity(sess.User)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrProviderRejected, err)
	}

	c.replaceSession(sess.oauth2Token(), identity)
	c.emit(AuthEvent{Kind: SignedIn, Identity: identity})
	return identity, nil
}

// SignUp registers an account. A session returned by servers without email confirmation is not kept.
func (c *GoTrueClient) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	var raw json.RawMessage
	if err := c.do(ctx, c.http, http.MethodPost, "/signup", credentials{email, password}, &raw); err != nil {
		return nil, err
	}

	var sess sessionResponse
	if err := json.Unmarshal(raw, &sess); err == nil && len(sess.User) > 0 {
		raw = sess.User
	}

	identity, err := models.ParseIdentity(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrProviderRejected, err)
	}
	return identity, nil
}

// SignOut revokes the session at the provider and clears it locally.
func (c *GoTrueClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()

	var err error
	if tok != nil {
		err = c.do(ctx, c.bearerClient(tok), http.MethodPost, "/logout", nil, nil)
	}

	c.replaceSession(nil, nil)
	c.emit(AuthEvent{Kind: SignedOut})
	return err
}

// User fetches the current user and announces changes as [UserUpdated].
func (c *GoTrueClient) User(ctx context.Context) (*models.Identity, error) {
	c.mu.Lock()
	hasToken := c.token != nil
	c.mu.Unlock()
	if !hasToken {
		return nil, shared.ErrNotAuthenticated
	}

	var raw json.RawMessage
	if err := c.do(ctx, c.HTTPClient(ctx), http.MethodGet, "/user", nil, &raw); err != nil {
		return nil, err
	}
	identity, err := models.ParseIdentity(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrProviderRejected, err)
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()
	c.emit(AuthEvent{Kind: UserUpdated, Identity: identity})
	return identity, nil
}

// Identity returns the locally known user without a network call.
func (c *GoTrueClient) Identity() *models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// OnAuthStateChange registers fn and recovers the stored session in the background.
// A store that cannot be read fails the subscription.
//
// The [InitialSession] event carries the identity known when recovery ends, so a sign-in
// that lands while recovery is in flight is reported rather than undone.
func (c *GoTrueClient) OnAuthStateChange(ctx context.Context, fn func(AuthEvent)) (func(), error) {
	var stored *oauth2.Token
	if c.store != nil {
		tok, err := c.store.LoadToken()
		if err != nil {
			return nil, fmt.Errorf("failed to load stored session: %w", err)
		}
		stored = tok
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	if c.token == nil && stored != nil {
		c.token = stored
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.recoverSession(ctx)

		c.emitMu.Lock()
		defer c.emitMu.Unlock()
		c.mu.Lock()
		listener, ok := c.listeners[id]
		identity := c.identity
		c.mu.Unlock()
		if ok && ctx.Err() == nil {
			listener(AuthEvent{Kind: InitialSession, Identity: identity})
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}, nil
}

// recoverSession resolves the user behind a stored token. A token the provider no longer accepts is dropped.
// The outcome is discarded when a sign-in or sign-out happened meanwhile.
func (c *GoTrueClient) recoverSession(ctx context.Context) {
	c.mu.Lock()
	needsUser := c.token != nil && c.identity == nil
	epoch := c.epoch
	c.mu.Unlock()
	if !needsUser {
		return
	}

	var raw json.RawMessage
	var identity *models.Identity
	err := c.do(ctx, c.HTTPClient(ctx), http.MethodGet, "/user", nil, &raw)
	if err == nil {
		identity, err = models.ParseIdentity(raw)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		c.logger.Debug("session changed during recovery, discarding result")
		return
	}
	if err == nil {
		c.identity = identity
		return
	}

	if ctx.Err() != nil {
		return
	}
	c.logger.Warn("stored session could not be recovered", "error", err)
	if errors.Is(err, shared.ErrNetworkFailure) {
		return
	}
	c.token, c.identity = nil, nil
	c.persistLocked(nil)
}

// HTTPClient returns a client that authorizes requests with the current access token, refreshing it when expired.
// Without a session the client sends only the anonymous key.
func (c *GoTrueClient) HTTPClient(ctx context.Context) *http.Client {
	c.mu.Lock()
	tok, epoch := c.token, c.epoch
	c.mu.Unlock()
	if tok == nil {
		return c.http
	}

	src := oauth2.ReuseTokenSource(tok, &refresher{ctx: ctx, client: c, refreshToken: tok.RefreshToken, epoch: epoch})
	return oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.http), src)
}

func (c *GoTrueClient) bearerClient(tok *oauth2.Token) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Source: oauth2.StaticTokenSource(tok), Base: c.http.Transport},
		Timeout:   c.http.Timeout,
	}
}

// refresher performs the refresh_token grant for [oauth2.ReuseTokenSource].
type refresher struct {
	ctx          context.Context
	client       *GoTrueClient
	refreshToken string
	epoch        uint64
}

func (r *refresher) Token() (*oauth2.Token, error) {
	if r.refreshToken == "" {
		return nil, &ProviderError{Message: "session expired", Kind: shared.ErrNotAuthenticated}
	}

	var sess sessionResponse
	body := map[string]string{"refresh_token": r.refreshToken}
	if err := r.client.do(r.ctx, r.client.http, http.MethodPost, "/token?grant_type=refresh_token", body, &sess); err != nil {
		return nil, err
	}

	tok := sess.oauth2Token()
	identity, err := models.ParseIdentity(sess.User)
	if err != nil {
		identity = r.client.Identity()
	}

	if r.client.refreshSession(r.epoch, tok, identity) {
		r.client.emit(AuthEvent{Kind: TokenRefreshed, Identity: identity})
	}
	return tok, nil
}

// replaceSession installs the result of a sign-in or sign-out.
func (c *GoTrueClient) replaceSession(tok *oauth2.Token, identity *models.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.token, c.identity = tok, identity
	c.persistLocked(tok)
}

// refreshSession keeps a refreshed token only if the session it was refreshed from is still current.
func (c *GoTrueClient) refreshSession(epoch uint64, tok *oauth2.Token, identity *models.Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	c.token, c.identity = tok, identity
	c.persistLocked(tok)
	return true
}

// persistLocked writes tok to the store, or clears it when nil. c.mu must be held.
func (c *GoTrueClient) persistLocked(tok *oauth2.Token) {
	if c.store == nil {
		return
	}

	var err error
	if tok == nil {
		err = c.store.ClearToken()
	} else {
		err = c.store.SaveToken(tok)
	}
	if err != nil {
		c.logger.Warn("failed to persist provider session", "error", err)
	}
}

func (c *GoTrueClient) emit(ev AuthEvent) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (c *GoTrueClient) do(ctx context.Context, client *http.Client, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.authURL+path, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return authError(resp.StatusCode, data)
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// apiKeyTransport adds the project's anonymous key to every request.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if t.key != "" {
		r.Header.Set("apikey", t.key)
		if r.Header.Get("Authorization") == "" {
			r.Header.Set("Authorization", "Bearer "+t.key)
		}
	}

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

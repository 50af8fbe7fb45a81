package repositories

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/services"
	"golang.org/x/oauth2"
)

// Cache keys
const (
	IdentityCacheKey   = "site"
	ProviderSessionKey = "provider_session"
)

// IdentityCache keeps the last-known serialized identity.
//
// It is a read cache only: the provider's live session decides who is signed in.
type IdentityCache struct {
	repo *CacheEntryRepository
}

// NewIdentityCache creates a new IdentityCache with the given repository
func NewIdentityCache(repo *CacheEntryRepository) *IdentityCache {
	return &IdentityCache{repo: repo}
}

// Save stores the identity, replacing any previous one.
func (c *IdentityCache) Save(identity *models.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	return c.repo.Upsert(IdentityCacheKey, data)
}

// Load returns the cached identity, or nil when nothing is cached.
func (c *IdentityCache) Load() (*models.Identity, error) {
	entry, err := c.repo.GetByKey(IdentityCacheKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return models.ParseIdentity(entry.Value())
}

// Clear removes the cached identity.
func (c *IdentityCache) Clear() error {
	return c.repo.DeleteByKey(IdentityCacheKey)
}

// TokenCache implements [services.TokenStore] using the cache table.
type TokenCache struct {
	repo *CacheEntryRepository
}

var _ services.TokenStore = (*TokenCache)(nil)

// NewTokenCache creates a new TokenCache with the given repository
func NewTokenCache(repo *CacheEntryRepository) *TokenCache {
	return &TokenCache{repo: repo}
}

// LoadToken returns the stored provider session, or nil when none is stored.
func (c *TokenCache) LoadToken() (*oauth2.Token, error) {
	entry, err := c.repo.GetByKey(ProviderSessionKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tok oauth2.Token
	if err := json.Unmarshal(entry.Value(), &tok); err != nil {
		return nil, fmt.Errorf("failed to decode stored session: %w", err)
	}
	return &tok, nil
}

// SaveToken stores the provider session.
func (c *TokenCache) SaveToken(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return c.repo.Upsert(ProviderSessionKey, data)
}

// ClearToken removes the stored provider session.
func (c *TokenCache) ClearToken() error {
	return c.repo.DeleteByKey(ProviderSessionKey)
}

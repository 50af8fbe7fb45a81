package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Identity is the user handle returned by the identity provider.
//
// The provider's JSON is kept verbatim so the persisted cache round-trips fields this type does not name.
type Identity struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Role         string     `json:"role,omitempty"`
	Aud          string     `json:"aud,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`

	raw json.RawMessage
}

type identityFields Identity

// ParseIdentity decodes a provider user object.
func ParseIdentity(data []byte) (*Identity, error) {
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	if id.ID == "" {
		return nil, fmt.Errorf("identity has no id")
	}
	return &id, nil
}

// UnmarshalJSON decodes the named fields and keeps the original document.
func (i *Identity) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*identityFields)(i)); err != nil {
		return err
	}
	i.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the provider's original document when there is one.
func (i Identity) MarshalJSON() ([]byte, error) {
	if len(i.raw) > 0 {
		return i.raw, nil
	}
	return json.Marshal(identityFields(i))
}

// DisplayName is the label shown in navigation chrome.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if i.Email != "" {
		return i.Email
	}
	return i.ID
}

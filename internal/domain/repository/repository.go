// Package repository defines the persisted entities the authorization core
// reads and the lookup interfaces the storage adapters implement. The core
// never writes through these interfaces.
package repository

import (
	"context"
	"errors"

	"github.com/keystash/keystash/internal/domain/oauth"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("not found")

// Client is a registered OAuth2 client.
type Client struct {
	ClientID             string
	ClientSecretHash     string // empty for public clients
	AccountID            int64  // owning account, acts as subject for client_credentials
	AuthorizedGrantTypes []oauth.GrantType
	Scope                string // comma-separated default scope list
	RedirectURIs         []string
	AutoApprove          bool
}

// IsAuthorizedFor reports whether the client may use the given grant type.
func (c *Client) IsAuthorizedFor(gt oauth.GrantType) bool {
	for _, g := range c.AuthorizedGrantTypes {
		if g == gt {
			return true
		}
	}
	return false
}

// Account is a resource-owner record.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Verified     bool
}

// KeyAlgorithm names the signing algorithm family of a key record.
type KeyAlgorithm string

const (
	KeyAlgorithmHMAC KeyAlgorithm = "hmac"
	KeyAlgorithmRSA  KeyAlgorithm = "rsa"
)

// KeyRecord is a persisted signing-key configuration row. Exactly the fields
// for its algorithm are populated: Secret for HMAC, PrivateKeyPEM (and
// optionally PublicKeyPEM) for RSA.
type KeyRecord struct {
	ID            string
	Algorithm     KeyAlgorithm
	Secret        string
	PrivateKeyPEM string
	PublicKeyPEM  string
	Active        bool
	Passive       bool
}

// ClientDao looks up registered clients.
type ClientDao interface {
	// GetClientByClientID returns the client or ErrNotFound.
	GetClientByClientID(ctx context.Context, clientID string) (*Client, error)
}

// ScopeDao looks up the system-wide allowed scope list.
type ScopeDao interface {
	GetAllowedScopes(ctx context.Context) ([]string, error)
}

// KeyDao looks up all configured signing-key records.
type KeyDao interface {
	GetKeys(ctx context.Context) ([]KeyRecord, error)
}

// AccountDao looks up resource-owner accounts.
type AccountDao interface {
	// GetAccountByEmail returns the account or ErrNotFound.
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	// GetAccountByID returns the account or ErrNotFound.
	GetAccountByID(ctx context.Context, id int64) (*Account, error)
}

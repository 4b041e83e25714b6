// Package authn verifies resource-owner credentials against stored accounts.
package authn

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/keystash/keystash/internal/domain/oauth"
	"github.com/keystash/keystash/internal/domain/repository"
	"github.com/keystash/keystash/internal/observability/logger"
	"github.com/keystash/keystash/internal/security/password"
)

// Service authenticates end users by email and password.
type Service interface {
	// Authenticate returns the authenticated user, or an error of kind
	// KindInvalidUser when the credentials do not match a usable account.
	Authenticate(ctx context.Context, email, plaintext string) (oauth.AuthenticatedUser, error)
}

type Deps struct {
	Accounts repository.AccountDao
}

func NewService(d Deps) Service {
	return &service{accounts: d.Accounts, log: logger.Named("authn")}
}

type service struct {
	accounts repository.AccountDao
	log      *zap.Logger
}

func (s *service) Authenticate(ctx context.Context, email, plaintext string) (oauth.AuthenticatedUser, error) {
	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return oauth.AuthenticatedUser{}, invalidCredentials()
		}
		s.log.Error("loading account", logger.Err(err))
		return oauth.AuthenticatedUser{}, oauth.NewError(oauth.KindAuthorization, "account could not be loaded").WithCause(err)
	}

	if !password.Verify(plaintext, account.PasswordHash) || !account.Verified {
		return oauth.AuthenticatedUser{}, invalidCredentials()
	}

	return oauth.AuthenticatedUser{UserID: account.ID, Email: account.Email}, nil
}

// invalidCredentials is deliberately uniform across unknown email, wrong
// password and unverified account.
func invalidCredentials() *oauth.Error {
	return oauth.NewError(oauth.KindInvalidUser, "invalid email or password")
}

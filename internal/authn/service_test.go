package authn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystash/keystash/internal/domain/oauth"
	"github.com/keystash/keystash/internal/domain/repository"
	"github.com/keystash/keystash/internal/security/password"
)

type fakeAccountDao struct {
	byEmail map[string]repository.Account
	err     error
}

func (d *fakeAccountDao) GetAccountByEmail(_ context.Context, email string) (*repository.Account, error) {
	if d.err != nil {
		return nil, d.err
	}
	a, ok := d.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (d *fakeAccountDao) GetAccountByID(_ context.Context, id int64) (*repository.Account, error) {
	for _, a := range d.byEmail {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func hashOf(t *testing.T, plain string) string {
	t.Helper()
	h, err := password.Hash(password.Default, plain)
	require.NoError(t, err)
	return h
}

func TestAuthenticate(t *testing.T) {
	dao := &fakeAccountDao{byEmail: map[string]repository.Account{
		"jo@example.com": {ID: 5, Email: "jo@example.com", PasswordHash: hashOf(t, "hunter2"), Verified: true},
	}}
	svc := NewService(Deps{Accounts: dao})

	user, err := svc.Authenticate(context.Background(), "jo@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, oauth.AuthenticatedUser{UserID: 5, Email: "jo@example.com"}, user)
}

func TestAuthenticateRejections(t *testing.T) {
	dao := &fakeAccountDao{byEmail: map[string]repository.Account{
		"jo@example.com":  {ID: 5, Email: "jo@example.com", PasswordHash: hashOf(t, "hunter2"), Verified: true},
		"new@example.com": {ID: 6, Email: "new@example.com", PasswordHash: hashOf(t, "hunter2"), Verified: false},
	}}
	svc := NewService(Deps{Accounts: dao})
	ctx := context.Background()

	cases := map[string]struct {
		email, pass string
	}{
		"unknown email":      {"nobody@example.com", "hunter2"},
		"wrong password":     {"jo@example.com", "wrong"},
		"unverified account": {"new@example.com", "hunter2"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tc.email, tc.pass)
			var oerr *oauth.Error
			require.ErrorAs(t, err, &oerr)
			assert.Equal(t, oauth.KindInvalidUser, oerr.Kind)
			assert.Equal(t, "invalid email or password", oerr.Description)
		})
	}
}

func TestAuthenticateStoreFailure(t *testing.T) {
	dao := &fakeAccountDao{err: errors.New("timeout")}
	svc := NewService(Deps{Accounts: dao})

	_, err := svc.Authenticate(context.Background(), "jo@example.com", "hunter2")
	var oerr *oauth.Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, oauth.KindAuthorization, oerr.Kind)
	assert.True(t, oerr.IsServerError())
}

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystash/keystash/internal/domain/oauth"
	"github.com/keystash/keystash/internal/domain/repository"
)

func TestClientLookup(t *testing.T) {
	s := New()
	s.PutClient(repository.Client{
		ClientID:             "web",
		AuthorizedGrantTypes: []oauth.GrantType{oauth.GrantAuthorizationCode},
	})
	ctx := context.Background()

	c, err := s.GetClientByClientID(ctx, "web")
	require.NoError(t, err)
	assert.True(t, c.IsAuthorizedFor(oauth.GrantAuthorizationCode))

	_, err = s.GetClientByClientID(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAccountLookupIsCaseInsensitive(t *testing.T) {
	s := New()
	s.PutAccount(repository.Account{ID: 1, Email: "Jo@Example.com"})
	ctx := context.Background()

	a, err := s.GetAccountByEmail(ctx, "jo@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 1, a.ID)

	a, err = s.GetAccountByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Jo@Example.com", a.Email)
}

func TestKeyOrderIsPreserved(t *testing.T) {
	s := New()
	s.PutKey(repository.KeyRecord{ID: "first"})
	s.PutKey(repository.KeyRecord{ID: "second"})

	keys, err := s.GetKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "first", keys[0].ID)
}

func TestLookupsReturnCopies(t *testing.T) {
	s := New()
	s.SetAllowedScopes([]string{"openid"})

	scopes, err := s.GetAllowedScopes(context.Background())
	require.NoError(t, err)
	scopes[0] = "mutated"

	again, err := s.GetAllowedScopes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"openid"}, again)
}

package pg

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/keystash/keystash/internal/domain/oauth"
	"github.com/keystash/keystash/internal/domain/repository"
)

func (s *Store) GetClientByClientID(ctx context.Context, clientID string) (*repository.Client, error) {
	const q = `
SELECT client_id, COALESCE(client_secret_hash, ''), account_id, grant_types, COALESCE(scope, ''), redirect_uris, auto_approve
FROM clients
WHERE client_id = $1`
	row := s.pool.QueryRow(ctx, q, clientID)

	var c repository.Client
	var grants string
	if err := row.Scan(&c.ClientID, &c.ClientSecretHash, &c.AccountID, &grants, &c.Scope, &c.RedirectURIs, &c.AutoApprove); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	for _, g := range strings.Split(grants, ",") {
		if gt, ok := oauth.ParseGrantType(g); ok {
			c.AuthorizedGrantTypes = append(c.AuthorizedGrantTypes, gt)
		}
	}
	return &c, nil
}

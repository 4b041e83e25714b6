package pg

import (
	"context"

	"github.com/keystash/keystash/internal/domain/repository"
)

func (s *Store) GetKeys(ctx context.Context) ([]repository.KeyRecord, error) {
	const q = `
SELECT id, algorithm, COALESCE(secret, ''), COALESCE(private_key, ''), COALESCE(public_key, ''), active, passive
FROM signing_keys
ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.KeyRecord
	for rows.Next() {
		var k repository.KeyRecord
		if err := rows.Scan(&k.ID, &k.Algorithm, &k.Secret, &k.PrivateKeyPEM, &k.PublicKeyPEM, &k.Active, &k.Passive); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *Store) GetAllowedScopes(ctx context.Context) ([]string, error) {
	const q = `SELECT name FROM allowed_scopes ORDER BY name ASC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

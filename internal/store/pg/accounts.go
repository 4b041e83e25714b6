package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/keystash/keystash/internal/domain/repository"
)

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*repository.Account, error) {
	const q = `
SELECT id, email, password_hash, verified
FROM accounts
WHERE lower(email) = lower($1)`
	return s.scanAccount(s.pool.QueryRow(ctx, q, email))
}

func (s *Store) GetAccountByID(ctx context.Context, id int64) (*repository.Account, error) {
	const q = `
SELECT id, email, password_hash, verified
FROM accounts
WHERE id = $1`
	return s.scanAccount(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) scanAccount(row pgx.Row) (*repository.Account, error) {
	var a repository.Account
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Verified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

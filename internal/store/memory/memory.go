// Package memory implements the lookup DAOs on in-process maps. It backs the
// memory storage driver used for development and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/keystash/keystash/internal/domain/repository"
)

type Store struct {
	mu       sync.RWMutex
	clients  map[string]repository.Client
	accounts map[int64]repository.Account
	keys     []repository.KeyRecord
	scopes   []string
}

func New() *Store {
	return &Store{
		clients:  make(map[string]repository.Client),
		accounts: make(map[int64]repository.Account),
	}
}

// PutClient registers or replaces a client.
func (s *Store) PutClient(c repository.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ClientID] = c
}

// PutAccount registers or replaces an account.
func (s *Store) PutAccount(a repository.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

// PutKey appends a signing-key record, preserving insertion order.
func (s *Store) PutKey(k repository.KeyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, k)
}

// SetAllowedScopes replaces the system scope allow-list.
func (s *Store) SetAllowedScopes(scopes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes = append([]string(nil), scopes...)
}

func (s *Store) GetClientByClientID(_ context.Context, clientID string) (*repository.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*repository.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			out := a
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetAccountByID(_ context.Context, id int64) (*repository.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s *Store) GetKeys(context.Context) ([]repository.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]repository.KeyRecord(nil), s.keys...), nil
}

func (s *Store) GetAllowedScopes(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.scopes...), nil
}

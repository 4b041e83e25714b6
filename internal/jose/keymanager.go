package jose

import (
	"context"

	"go.uber.org/zap"

	"github.com/keystash/keystash/internal/domain/repository"
	"github.com/keystash/keystash/internal/observability/logger"
)

// KeyManager partitions the configured signing keys by lifecycle state.
// Active keys sign new tokens, passive keys only verify, disabled keys do
// neither. When the backing store cannot be read every view is empty, so
// signing fails loudly instead of falling back to a stale key.
type KeyManager struct {
	keys repository.KeyDao
	log  *zap.Logger
}

func NewKeyManager(keys repository.KeyDao) *KeyManager {
	return &KeyManager{keys: keys, log: logger.Named("jose.keys")}
}

// ActiveKey returns the signing key, or nil when none is active. When more
// than one key is flagged active the first one returned by the store wins.
func (m *KeyManager) ActiveKey(ctx context.Context) SigningKey {
	for _, p := range m.providers(ctx) {
		if p.active {
			return p.key
		}
	}
	return nil
}

// PassiveKeys returns the keys that still verify but no longer sign.
func (m *KeyManager) PassiveKeys(ctx context.Context) []SigningKey {
	var out []SigningKey
	for _, p := range m.providers(ctx) {
		if !p.active && p.passive {
			out = append(out, p.key)
		}
	}
	return out
}

// DisabledKeys returns keys that neither sign nor verify.
func (m *KeyManager) DisabledKeys(ctx context.Context) []SigningKey {
	var out []SigningKey
	for _, p := range m.providers(ctx) {
		if !p.active && !p.passive {
			out = append(out, p.key)
		}
	}
	return out
}

// AllKeys returns every configured key regardless of state.
func (m *KeyManager) AllKeys(ctx context.Context) []SigningKey {
	var out []SigningKey
	for _, p := range m.providers(ctx) {
		out = append(out, p.key)
	}
	return out
}

func (m *KeyManager) providers(ctx context.Context) []provider {
	recs, err := m.keys.GetKeys(ctx)
	if err != nil {
		m.log.Error("loading signing keys", logger.Err(err))
		return nil
	}
	out := make([]provider, 0, len(recs))
	for _, rec := range recs {
		p, err := newProvider(rec)
		if err != nil {
			m.log.Warn("skipping unusable signing key", logger.KeyID(rec.ID), logger.Err(err))
			continue
		}
		out = append(out, p)
	}
	return out
}

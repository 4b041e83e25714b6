package jose

import (
	"context"
	"encoding/base64"
	"math/big"
)

// JSONWebKey is the published form of a single verification key.
type JSONWebKey struct {
	KeyType   string `json:"kty"`
	Use       string `json:"use"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
	Modulus   string `json:"n,omitempty"`
	Exponent  string `json:"e,omitempty"`
}

// JSONWebKeySet is the /.well-known/jwks.json document.
type JSONWebKeySet struct {
	Keys []JSONWebKey `json:"keys"`
}

// JWKS publishes the public halves of every key a token may currently be
// verified against. HMAC keys are symmetric and are never published.
func JWKS(ctx context.Context, keys *KeyManager) JSONWebKeySet {
	set := JSONWebKeySet{Keys: []JSONWebKey{}}
	candidates := keys.PassiveKeys(ctx)
	if active := keys.ActiveKey(ctx); active != nil {
		candidates = append([]SigningKey{active}, candidates...)
	}
	for _, key := range candidates {
		rk, ok := key.(RsaKey)
		if !ok || rk.PublicKey == nil {
			continue
		}
		set.Keys = append(set.Keys, JSONWebKey{
			KeyType:   "RSA",
			Use:       "sig",
			Algorithm: "RS256",
			KeyID:     rk.ID,
			Modulus:   base64.RawURLEncoding.EncodeToString(rk.PublicKey.N.Bytes()),
			Exponent:  base64.RawURLEncoding.EncodeToString(big.NewInt(int64(rk.PublicKey.E)).Bytes()),
		})
	}
	return set
}

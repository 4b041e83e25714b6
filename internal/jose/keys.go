// Package jose implements the signing-key lifecycle and all JWT construction
// and verification: the SigningKey variants, the KeyManager partitioning keys
// into active/passive/disabled, the algorithm factory and the token service.
package jose

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/keystash/keystash/internal/domain/repository"
)

// SigningKey is one configured signing key: either an HMAC secret or an RSA
// key pair. The set of variants is closed; AlgorithmFor matches exhaustively.
type SigningKey interface {
	// KeyID is the stable kid fingerprint derived from the storage identifier.
	KeyID() string

	sealed()
}

// HmacKey signs and verifies with a shared secret (HMAC-SHA256).
type HmacKey struct {
	ID     string
	Secret string
}

func (k HmacKey) KeyID() string { return k.ID }
func (k HmacKey) sealed()       {}

// RsaKey signs with the private half and verifies with the public half
// (RSA-SHA256). PrivateKey may be nil for verification-only keys.
type RsaKey struct {
	ID         string
	PublicKey  *rsa.PublicKey
	PrivateKey *rsa.PrivateKey
}

func (k RsaKey) KeyID() string { return k.ID }
func (k RsaKey) sealed()       {}

// provider pairs a constructed key with its lifecycle flags.
type provider struct {
	key     SigningKey
	active  bool
	passive bool
}

// newProvider builds a SigningKey from a persisted key record. HMAC records
// need a secret; RSA records need a private key, deriving the public key from
// it when none is stored.
func newProvider(rec repository.KeyRecord) (provider, error) {
	switch rec.Algorithm {
	case repository.KeyAlgorithmHMAC:
		if rec.Secret == "" {
			return provider{}, fmt.Errorf("hmac key %s has no secret", rec.ID)
		}
		return provider{
			key:     HmacKey{ID: keyFingerprint(rec.ID), Secret: rec.Secret},
			active:  rec.Active,
			passive: rec.Passive,
		}, nil

	case repository.KeyAlgorithmRSA:
		priv, err := parseRSAPrivateKey(rec.PrivateKeyPEM)
		if err != nil {
			return provider{}, fmt.Errorf("rsa key %s: %w", rec.ID, err)
		}
		pub := &priv.PublicKey
		if rec.PublicKeyPEM != "" {
			if pub, err = parseRSAPublicKey(rec.PublicKeyPEM); err != nil {
				return provider{}, fmt.Errorf("rsa key %s: %w", rec.ID, err)
			}
		}
		return provider{
			key:     RsaKey{ID: keyFingerprint(rec.ID), PublicKey: pub, PrivateKey: priv},
			active:  rec.Active,
			passive: rec.Passive,
		}, nil

	default:
		return provider{}, fmt.Errorf("unsupported key algorithm %q", rec.Algorithm)
	}
}

// keyFingerprint derives the kid from the storage identifier.
func keyFingerprint(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}

// parseRSAPrivateKey accepts PEM (PKCS#8 or PKCS#1) or bare base64 DER.
func parseRSAPrivateKey(s string) (*rsa.PrivateKey, error) {
	der, err := keyDER(s)
	if err != nil {
		return nil, err
	}
	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		return rk, nil
	}
	return x509.ParsePKCS1PrivateKey(der)
}

// parseRSAPublicKey accepts PEM (PKIX or PKCS#1) or bare base64 DER.
func parseRSAPublicKey(s string) (*rsa.PublicKey, error) {
	der, err := keyDER(s)
	if err != nil {
		return nil, err
	}
	if k, err := x509.ParsePKIXPublicKey(der); err == nil {
		rk, ok := k.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is not RSA")
		}
		return rk, nil
	}
	return x509.ParsePKCS1PublicKey(der)
}

// keyDER strips PEM armor when present, otherwise base64-decodes the raw body.
func keyDER(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty key material")
	}
	if block, _ := pem.Decode([]byte(s)); block != nil {
		return block.Bytes, nil
	}
	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, fmt.Errorf("key is neither PEM nor base64 DER: %w", err)
	}
	return der, nil
}

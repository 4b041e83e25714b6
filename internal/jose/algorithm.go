package jose

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keystash/keystash/internal/domain/oauth"
)

// Algorithm binds a JWS signing method to the key material it operates on.
type Algorithm struct {
	Method    jwt.SigningMethod
	kid       string
	signKey   any
	verifyKey any
}

// KeyID reports the kid of the underlying key.
func (a *Algorithm) KeyID() string { return a.kid }

// Sign produces the raw JWS signature over data.
func (a *Algorithm) Sign(data []byte) ([]byte, error) {
	if a.signKey == nil {
		return nil, fmt.Errorf("key %s cannot sign", a.kid)
	}
	return a.Method.Sign(string(data), a.signKey)
}

// TokenDigest derives the digest material behind at_hash/c_hash claims: a
// plain SHA-256 sum for RSA keys, the HMAC-SHA256 tag for HMAC keys.
func (a *Algorithm) TokenDigest(data []byte) ([]byte, error) {
	if _, ok := a.Method.(*jwt.SigningMethodRSA); ok {
		sum := sha256.Sum256(data)
		return sum[:], nil
	}
	return a.Sign(data)
}

// SignToken serializes and signs a claim set, stamping the kid header.
func (a *Algorithm) SignToken(claims jwt.MapClaims) (string, error) {
	if a.signKey == nil {
		return "", fmt.Errorf("key %s cannot sign", a.kid)
	}
	tok := jwt.NewWithClaims(a.Method, claims)
	tok.Header["kid"] = a.kid
	return tok.SignedString(a.signKey)
}

// VerifyKey returns the key material handed to the JWT parser.
func (a *Algorithm) VerifyKey() any { return a.verifyKey }

// AlgorithmFactory derives usable algorithms from the key manager's
// current view of the key set.
type AlgorithmFactory struct {
	keys *KeyManager
}

func NewAlgorithmFactory(keys *KeyManager) *AlgorithmFactory {
	return &AlgorithmFactory{keys: keys}
}

// ForSignature returns the algorithm used to sign new tokens. It fails when
// no key is active.
func (f *AlgorithmFactory) ForSignature(ctx context.Context) (*Algorithm, error) {
	key := f.keys.ActiveKey(ctx)
	if key == nil {
		return nil, oauth.NewError(oauth.KindSigningKey, "no active signing key is configured")
	}
	return algorithmFor(key), nil
}

// ForVerification returns every algorithm a presented token may validly be
// signed with: the active key plus all passive keys.
func (f *AlgorithmFactory) ForVerification(ctx context.Context) []*Algorithm {
	var out []*Algorithm
	if key := f.keys.ActiveKey(ctx); key != nil {
		out = append(out, algorithmFor(key))
	}
	for _, key := range f.keys.PassiveKeys(ctx) {
		out = append(out, algorithmFor(key))
	}
	return out
}

func algorithmFor(key SigningKey) *Algorithm {
	switch k := key.(type) {
	case HmacKey:
		secret := []byte(k.Secret)
		return &Algorithm{Method: jwt.SigningMethodHS256, kid: k.ID, signKey: secret, verifyKey: secret}
	case RsaKey:
		a := &Algorithm{Method: jwt.SigningMethodRS256, kid: k.ID, verifyKey: k.PublicKey}
		if k.PrivateKey != nil {
			a.signKey = k.PrivateKey
		}
		return a
	default:
		panic(fmt.Sprintf("unhandled signing key type %T", key))
	}
}

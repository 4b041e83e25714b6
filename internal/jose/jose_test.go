package jose

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystash/keystash/internal/domain/oauth"
	"github.com/keystash/keystash/internal/domain/repository"
)

type fakeKeyDao struct {
	recs []repository.KeyRecord
	err  error
}

func (d *fakeKeyDao) GetKeys(context.Context) ([]repository.KeyRecord, error) {
	return d.recs, d.err
}

func hmacRecord(id string, active, passive bool) repository.KeyRecord {
	return repository.KeyRecord{
		ID:        id,
		Algorithm: repository.KeyAlgorithmHMAC,
		Secret:    "secret-for-" + id,
		Active:    active,
		Passive:   passive,
	}
}

func rsaRecord(t *testing.T, id string, active, passive bool) repository.KeyRecord {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	pemText := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return repository.KeyRecord{
		ID:            id,
		Algorithm:     repository.KeyAlgorithmRSA,
		PrivateKeyPEM: string(pemText),
		Active:        active,
		Passive:       passive,
	}
}

func newService(dao *fakeKeyDao) *TokenService {
	return NewTokenService(NewAlgorithmFactory(NewKeyManager(dao)), "https://auth.example.com")
}

func TestKeyManagerPartitionsByLifecycle(t *testing.T) {
	dao := &fakeKeyDao{recs: []repository.KeyRecord{
		hmacRecord("a", true, false),
		hmacRecord("b", false, true),
		hmacRecord("c", false, false),
	}}
	km := NewKeyManager(dao)
	ctx := context.Background()

	require.NotNil(t, km.ActiveKey(ctx))
	assert.Equal(t, keyFingerprint("a"), km.ActiveKey(ctx).KeyID())
	require.Len(t, km.PassiveKeys(ctx), 1)
	assert.Equal(t, keyFingerprint("b"), km.PassiveKeys(ctx)[0].KeyID())
	require.Len(t, km.DisabledKeys(ctx), 1)
	assert.Equal(t, keyFingerprint("c"), km.DisabledKeys(ctx)[0].KeyID())
	assert.Len(t, km.AllKeys(ctx), 3)
}

func TestKeyManagerFirstActiveWins(t *testing.T) {
	dao := &fakeKeyDao{recs: []repository.KeyRecord{
		hmacRecord("first", true, false),
		hmacRecord("second", true, false),
	}}
	km := NewKeyManager(dao)

	assert.Equal(t, keyFingerprint("first"), km.ActiveKey(context.Background()).KeyID())
}

func TestKeyManagerEmptyOnStoreFailure(t *testing.T) {
	dao := &fakeKeyDao{err: errors.New("connection refused")}
	km := NewKeyManager(dao)
	ctx := context.Background()

	assert.Nil(t, km.ActiveKey(ctx))
	assert.Empty(t, km.AllKeys(ctx))
}

func TestForSignatureWithoutActiveKey(t *testing.T) {
	dao := &fakeKeyDao{recs: []repository.KeyRecord{hmacRecord("old", false, true)}}
	f := NewAlgorithmFactory(NewKeyManager(dao))

	_, err := f.ForSignature(context.Background())
	var oerr *oauth.Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, oauth.KindSigningKey, oerr.Kind)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newService(&fakeKeyDao{recs: []repository.KeyRecord{hmacRecord("k1", true, false)}})
	ctx := context.Background()

	tok, err := svc.CreateAccessToken(ctx, map[string]string{
		"account_id": "42",
		"scope":      "openid profile",
	})
	require.NoError(t, err)
	assert.True(t, svc.IsTokenValid(ctx, tok))
	assert.Equal(t, "42", svc.GetTokenClaim(tok, "account_id"))
	assert.Equal(t, "openid profile", svc.GetTokenClaim(tok, "scope"))
	assert.NotEmpty(t, svc.GetTokenClaim(tok, "jti"))
	assert.Empty(t, svc.GetTokenClaim(tok, "missing"))
}

func TestAccessTokenCallerClaimsOverrideDefaults(t *testing.T) {
	svc := newService(&fakeKeyDao{recs: []repository.KeyRecord{hmacRecord("k1", true, false)}})

	tok, err := svc.CreateAccessToken(context.Background(), map[string]string{"jti": "pinned"})
	require.NoError(t, err)
	assert.Equal(t, "pinned", svc.GetTokenClaim(tok, "jti"))
}

func TestRefreshTokenCarriesClaims(t *testing.T) {
	svc := newService(&fakeKeyDao{recs: []repository.KeyRecord{hmacRecord("k1", true, false)}})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	access, err := svc.CreateAccessToken(ctx, map[string]string{"account_id": "7", "scope": "email"})
	require.NoError(t, err)
	refresh, err := svc.CreateRefreshToken(ctx, access)
	require.NoError(t, err)

	assert.True(t, svc.IsTokenValid(ctx, refresh))
	assert.Equal(t, "7", svc.GetTokenClaim(refresh, "account_id"))
	assert.Equal(t, "email", svc.GetTokenClaim(refresh, "scope"))
	assert.Equal(t, svc.GetTokenClaim(access, "jti"), svc.GetTokenClaim(refresh, "ati"))
	assert.NotEqual(t, svc.GetTokenClaim(access, "jti"), svc.GetTokenClaim(refresh, "jti"))

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(refresh, claims)
	require.NoError(t, err)
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.Equal(t, now.Add(AccessTokenTTL).Add(RefreshTokenExtension).Unix(), exp.Unix())
}

func TestRefreshTokenRejectsGarbage(t *testing.T) {
	svc := newService(&fakeKeyDao{recs: []repository.KeyRecord{hmacRecord("k1", true, false)}})

	_, err := svc.CreateRefreshToken(context.Background(), "not-a-jwt")
	var oerr *oauth.Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, oauth.KindToken, oerr.Kind)
}

func TestIDTokenClaims(t *testing.T) {
	svc := newService(&fakeKeyDao{recs: []repository.KeyRecord{hmacRecord("k1", true, false)}})
	ctx := context.Background()
	user := oauth.AuthenticatedUser{UserID: 9, Email: "jo@example.com"}

	access, err := svc.CreateAccessToken(ctx, nil)
	require.NoError(t, err)
	idToken, err := svc.CreateIDToken(ctx, "web-client", user, "n0nce", access, "authcode123")
	require.NoError(t, err)
	require.True(t, svc.IsTokenValid(ctx, idToken))

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(idToken, claims)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com", claims["iss"])
	assert.Equal(t, "web-client", claims["aud"])
	assert.Equal(t, "jo@example.com", claims["email"])
	assert.Equal(t, "n0nce", claims["nonce"])
	assert.Equal(t, SubjectIdentifier(user), claims["sub"])
	assert.EqualValues(t, 9, claims["user_id"])

	alg, err := svc.alg.ForSignature(ctx)
	require.NoError(t, err)
	sig, err := alg.Sign([]byte(access))
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(sig[:len(sig)/2]), claims["at_hash"])
	assert.NotEmpty(t, claims["c_hash"])
	assert.NotEqual(t, claims["at_hash"], claims["c_hash"])
}

func TestIDTokenOmitsOptionalClaims(t *testing.T) {
	svc := newService(&fakeKeyDao{recs: []repository.KeyRecord{hmacRecord("k1", true, false)}})

	idToken, err := svc.CreateIDToken(context.Background(), "web-client", oauth.AuthenticatedUser{UserID: 1, Email: "a@b.c"}, "", "", "")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(idToken, claims)
	require.NoError(t, err)
	assert.NotContains(t, claims, "nonce")
	assert.NotContains(t, claims, "at_hash")
	assert.NotContains(t, claims, "c_hash")
}

func TestKeyRotationKeepsOldTokensVerifiable(t *testing.T) {
	dao := &fakeKeyDao{recs: []repository.KeyRecord{hmacRecord("gen1", true, false)}}
	svc := newService(dao)
	ctx := context.Background()

	tok, err := svc.CreateAccessToken(ctx, nil)
	require.NoError(t, err)

	// Rotate: gen1 becomes passive, gen2 signs new tokens.
	dao.recs = []repository.KeyRecord{
		hmacRecord("gen2", true, false),
		hmacRecord("gen1", false, true),
	}
	assert.True(t, svc.IsTokenValid(ctx, tok))

	// Disabling gen1 removes it from the verification set.
	dao.recs = []repository.KeyRecord{
		hmacRecord("gen2", true, false),
		hmacRecord("gen1", false, false),
	}
	assert.False(t, svc.IsTokenValid(ctx, tok))
}

func TestRSAKeySignsAndPublishesJWKS(t *testing.T) {
	dao := &fakeKeyDao{recs: []repository.KeyRecord{rsaRecord(t, "rsa1", true, false)}}
	svc := newService(dao)
	ctx := context.Background()

	tok, err := svc.CreateAccessToken(ctx, map[string]string{"scope": "openid"})
	require.NoError(t, err)
	assert.True(t, svc.IsTokenValid(ctx, tok))

	set := JWKS(ctx, NewKeyManager(dao))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "RSA", set.Keys[0].KeyType)
	assert.Equal(t, "RS256", set.Keys[0].Algorithm)
	assert.Equal(t, keyFingerprint("rsa1"), set.Keys[0].KeyID)
	assert.NotEmpty(t, set.Keys[0].Modulus)
}

func TestRSAIDTokenHashesArePlainDigests(t *testing.T) {
	svc := newService(&fakeKeyDao{recs: []repository.KeyRecord{rsaRecord(t, "rsa1", true, false)}})
	ctx := context.Background()
	user := oauth.AuthenticatedUser{UserID: 3, Email: "ray@example.com"}

	access, err := svc.CreateAccessToken(ctx, nil)
	require.NoError(t, err)
	idToken, err := svc.CreateIDToken(ctx, "web-client", user, "", access, "authcode456")
	require.NoError(t, err)
	require.True(t, svc.IsTokenValid(ctx, idToken))

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(idToken, claims)
	require.NoError(t, err)

	atSum := sha256.Sum256([]byte(access))
	assert.Equal(t, base64.StdEncoding.EncodeToString(atSum[:16]), claims["at_hash"])
	cSum := sha256.Sum256([]byte("authcode456"))
	assert.Equal(t, base64.StdEncoding.EncodeToString(cSum[:16]), claims["c_hash"])
}

func TestJWKSSkipsSymmetricKeys(t *testing.T) {
	dao := &fakeKeyDao{recs: []repository.KeyRecord{hmacRecord("k1", true, false)}}

	set := JWKS(context.Background(), NewKeyManager(dao))
	assert.Empty(t, set.Keys)
}

func TestSubjectIdentifierIsStable(t *testing.T) {
	u := oauth.AuthenticatedUser{UserID: 17, Email: "sam@example.com"}
	first := SubjectIdentifier(u)
	assert.Equal(t, first, SubjectIdentifier(u))
	assert.NotEqual(t, first, SubjectIdentifier(oauth.AuthenticatedUser{UserID: 18, Email: "sam@example.com"}))
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-5[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`, first)
}

func TestRejectsUnusableKeyRecord(t *testing.T) {
	dao := &fakeKeyDao{recs: []repository.KeyRecord{
		{ID: "broken", Algorithm: repository.KeyAlgorithmHMAC, Active: true},
		hmacRecord("good", true, false),
	}}
	km := NewKeyManager(dao)

	// The broken record is skipped; the next active key signs.
	assert.Equal(t, keyFingerprint("good"), km.ActiveKey(context.Background()).KeyID())
}

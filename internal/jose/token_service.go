package jose

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keystash/keystash/internal/domain/oauth"
	"github.com/keystash/keystash/internal/observability/logger"
)

const (
	// AccessTokenTTL is the default lifetime of access and ID tokens.
	AccessTokenTTL = time.Hour

	// RefreshTokenExtension is how far past the access token's expiry the
	// refresh token minted alongside it stays valid.
	RefreshTokenExtension = 7 * 24 * time.Hour
)

// TokenService mints and verifies the three token kinds: access tokens,
// refresh tokens derived from them, and OpenID Connect ID tokens.
type TokenService struct {
	alg    *AlgorithmFactory
	issuer string
	now    func() time.Time
	log    *zap.Logger
}

func NewTokenService(alg *AlgorithmFactory, issuer string) *TokenService {
	return &TokenService{
		alg:    alg,
		issuer: issuer,
		now:    time.Now,
		log:    logger.Named("jose.tokens"),
	}
}

// CreateAccessToken mints an access token with a fresh jti, iat and a
// one-hour expiry. Caller-supplied claims are applied last and may override
// any default.
func (s *TokenService) CreateAccessToken(ctx context.Context, extra map[string]string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(AccessTokenTTL).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	return s.sign(ctx, claims)
}

// CreateRefreshToken mints a refresh token from an already-issued access
// token: every claim is carried over, with a fresh jti, an ati pointing at
// the access token's jti, and an expiry seven days past the access token's.
// The access token is decoded without signature verification; callers vouch
// for it because they just minted it.
func (s *TokenService) CreateRefreshToken(ctx context.Context, accessToken string) (string, error) {
	src := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, src); err != nil {
		return "", oauth.NewError(oauth.KindToken, "access token could not be decoded").WithCause(err)
	}

	now := s.now()
	base := now.Add(AccessTokenTTL)
	if exp, err := src.GetExpirationTime(); err == nil && exp != nil {
		base = exp.Time
	}

	claims := jwt.MapClaims{}
	for k, v := range src {
		claims[k] = v
	}
	if jti, ok := src["jti"]; ok {
		claims["ati"] = jti
	}
	claims["jti"] = uuid.NewString()
	claims["iat"] = now.Unix()
	claims["exp"] = base.Add(RefreshTokenExtension).Unix()

	return s.sign(ctx, claims)
}

// CreateIDToken mints an OpenID Connect ID token for user, audience-bound to
// the client. nonce, accessToken and code are optional; when present they
// add the nonce, at_hash and c_hash claims respectively.
func (s *TokenService) CreateIDToken(ctx context.Context, clientID string, user oauth.AuthenticatedUser, nonce, accessToken, code string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss":     s.issuer,
		"sub":     SubjectIdentifier(user),
		"aud":     clientID,
		"iat":     now.Unix(),
		"exp":     now.Add(AccessTokenTTL).Unix(),
		"email":   user.Email,
		"user_id": user.UserID,
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	if accessToken != "" {
		h, err := s.tokenHash(ctx, accessToken)
		if err != nil {
			return "", err
		}
		claims["at_hash"] = h
	}
	if code != "" {
		h, err := s.tokenHash(ctx, code)
		if err != nil {
			return "", err
		}
		claims["c_hash"] = h
	}
	return s.sign(ctx, claims)
}

// IsTokenValid reports whether token carries a valid signature from the
// active or any passive key and has not expired.
func (s *TokenService) IsTokenValid(ctx context.Context, token string) bool {
	for _, alg := range s.alg.ForVerification(ctx) {
		parser := jwt.NewParser(jwt.WithValidMethods([]string{alg.Method.Alg()}))
		parsed, err := parser.Parse(token, func(*jwt.Token) (any, error) {
			return alg.VerifyKey(), nil
		})
		if err == nil && parsed.Valid {
			return true
		}
	}
	return false
}

// GetTokenClaim reads a string claim from token without verifying its
// signature. It returns "" when the claim is absent or not a string.
func (s *TokenService) GetTokenClaim(token, name string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	v, _ := claims[name].(string)
	return v
}

func (s *TokenService) sign(ctx context.Context, claims jwt.MapClaims) (string, error) {
	alg, err := s.alg.ForSignature(ctx)
	if err != nil {
		return "", err
	}
	signed, err := alg.SignToken(claims)
	if err != nil {
		s.log.Error("signing token", logger.KeyID(alg.KeyID()), logger.Err(err))
		return "", oauth.NewError(oauth.KindToken, "token could not be signed").WithCause(err)
	}
	return signed, nil
}

// tokenHash derives the at_hash/c_hash value: the active key's token digest
// over the raw token bytes, left half, base64-encoded.
func (s *TokenService) tokenHash(ctx context.Context, raw string) (string, error) {
	alg, err := s.alg.ForSignature(ctx)
	if err != nil {
		return "", err
	}
	sum, err := alg.TokenDigest([]byte(raw))
	if err != nil {
		return "", oauth.NewError(oauth.KindToken, "token hash could not be derived").WithCause(err)
	}
	return base64.StdEncoding.EncodeToString(sum[:len(sum)/2]), nil
}

// SubjectIdentifier derives the pairwise-stable sub claim for a user: a
// name-style UUID over the SHA-256 digest of "email:userID".
func SubjectIdentifier(user oauth.AuthenticatedUser) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", user.Email, user.UserID)))
	var u uuid.UUID
	copy(u[:], sum[:16])
	u[6] = (u[6] & 0x0f) | 0x50
	u[8] = (u[8] & 0x3f) | 0x80
	return u.String()
}

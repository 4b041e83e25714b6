// Package authz implements the grant-type state machine: authorization-code
// issuance and exchange, the implicit flow, and the client_credentials,
// password and refresh_token grants.
package authz

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/keystash/keystash/internal/authn"
	"github.com/keystash/keystash/internal/cache"
	"github.com/keystash/keystash/internal/domain/oauth"
	"github.com/keystash/keystash/internal/domain/repository"
	"github.com/keystash/keystash/internal/jose"
	"github.com/keystash/keystash/internal/metrics"
	"github.com/keystash/keystash/internal/observability/logger"
	"github.com/keystash/keystash/internal/security/password"
	tokens "github.com/keystash/keystash/internal/security/token"
)

// AuthCodeTTL is how long an issued authorization code may sit unredeemed.
const AuthCodeTTL = 10 * time.Minute

// privilegedScope, when present in the system allow-list, lifts the
// exact-match requirement on requested scopes.
const privilegedScope = "privileged"

// Service drives every OAuth2/OIDC grant the server supports. All methods
// return *oauth.Error on failure so the web layer can map kinds to wire codes.
type Service interface {
	// GenerateAuthorizationCode runs the authorize-endpoint half of the
	// code and hybrid flows and returns the one-time code record.
	GenerateAuthorizationCode(ctx context.Context, req oauth.AuthorizationRequest, user oauth.AuthenticatedUser) (*oauth.AuthCode, error)

	// ImplicitGrant issues tokens straight from the authorize endpoint.
	ImplicitGrant(ctx context.Context, req oauth.AuthorizationRequest, user oauth.AuthenticatedUser) (*oauth.TokenResponse, error)

	// AuthorizationCodeGrant redeems a code at the token endpoint. A code
	// whose client and redirect URI bindings match is consumed exactly once;
	// a mismatched attempt leaves it cached for its rightful owner.
	AuthorizationCodeGrant(ctx context.Context, auth oauth.ClientAuthorization, code, redirectURI string) (*oauth.TokenResponse, error)

	// ClientCredentialsGrant issues a token to a confidential client acting
	// on its own behalf.
	ClientCredentialsGrant(ctx context.Context, auth oauth.ClientAuthorization, scope string) (*oauth.TokenResponse, error)

	// PasswordGrant exchanges resource-owner credentials for tokens.
	PasswordGrant(ctx context.Context, auth oauth.ClientAuthorization, username, plaintext, scope string) (*oauth.TokenResponse, error)

	// RefreshTokenGrant rotates a refresh token into a fresh token pair.
	RefreshTokenGrant(ctx context.Context, auth oauth.ClientAuthorization, refreshToken string) (*oauth.TokenResponse, error)
}

type Deps struct {
	Clients repository.ClientDao
	Scopes  repository.ScopeDao
	Authn   authn.Service
	Tokens  *jose.TokenService
	Codes   *cache.Expiring[string, *oauth.AuthCode]
}

func NewService(d Deps) Service {
	return &service{
		clients: d.Clients,
		scopes:  d.Scopes,
		authn:   d.Authn,
		tokens:  d.Tokens,
		codes:   d.Codes,
		newCode: tokens.GenerateAuthCode,
		log:     logger.Named("authz"),
	}
}

type service struct {
	clients repository.ClientDao
	scopes  repository.ScopeDao
	authn   authn.Service
	tokens  *jose.TokenService
	codes   *cache.Expiring[string, *oauth.AuthCode]
	newCode func() (string, error)
	log     *zap.Logger
}

func (s *service) GenerateAuthorizationCode(ctx context.Context, req oauth.AuthorizationRequest, user oauth.AuthenticatedUser) (*oauth.AuthCode, error) {
	client, err := s.authorizeClient(ctx, req, oauth.GrantAuthorizationCode)
	if err != nil {
		return nil, err
	}
	scopes, err := s.resolveScopes(ctx, client, req.Scopes)
	if err != nil {
		return nil, err
	}

	// Re-issuing for an identical pending request returns the same code
	// instead of piling up equivalent ones.
	minted := false
	code, err := s.codes.FindOrCreate(
		matchingCode(req, user, scopes),
		func() (string, *oauth.AuthCode, error) {
			code, err := s.mintAuthCode(ctx, req, user, client, scopes)
			if err != nil {
				return "", nil, err
			}
			minted = true
			return code.Code, code, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if minted {
		metrics.AuthCodesIssued.Inc()
	} else {
		metrics.AuthCodesDeduped.Inc()
	}
	return code, nil
}

// mintAuthCode builds a fresh code record. Hybrid requests get their extra
// tokens minted now and attached, so the exchange step returns them verbatim.
func (s *service) mintAuthCode(ctx context.Context, req oauth.AuthorizationRequest, user oauth.AuthenticatedUser, client *repository.Client, scopes map[string]struct{}) (*oauth.AuthCode, error) {
	// Codes must be unique among everything currently cached.
	raw, err := s.newCode()
	for err == nil && s.codes.Has(raw) {
		raw, err = s.newCode()
	}
	if err != nil {
		return nil, oauth.NewError(oauth.KindAuthorization, "authorization code could not be generated").WithCause(err)
	}
	code := &oauth.AuthCode{
		Code:           raw,
		ClientID:       client.ClientID,
		ResolvedScopes: scopes,
		RedirectURI:    req.RedirectURI,
		User:           user,
		Nonce:          req.Nonce,
	}

	if req.HasResponseType(oauth.ResponseTypeToken) {
		access, err := s.tokens.CreateAccessToken(ctx, userClaims(user.UserID, user.Email, scopes))
		if err != nil {
			return nil, err
		}
		code.AccessToken = access
		if code.RefreshToken, err = s.tokens.CreateRefreshToken(ctx, access); err != nil {
			return nil, err
		}
	}
	if req.IsOpenIDConnect() && req.HasResponseType(oauth.ResponseTypeIDToken) {
		idToken, err := s.tokens.CreateIDToken(ctx, client.ClientID, user, req.Nonce, code.AccessToken, code.Code)
		if err != nil {
			return nil, err
		}
		code.IDToken = idToken
	}

	s.log.Info("authorization code issued",
		logger.ClientID(client.ClientID),
		logger.UserID(user.UserID),
		logger.Scope(oauth.JoinScopes(scopes)))
	return code, nil
}

func (s *service) ImplicitGrant(ctx context.Context, req oauth.AuthorizationRequest, user oauth.AuthenticatedUser) (*oauth.TokenResponse, error) {
	client, err := s.authorizeClient(ctx, req, oauth.GrantImplicit)
	if err != nil {
		return nil, err
	}
	scopes, err := s.resolveScopes(ctx, client, req.Scopes)
	if err != nil {
		return nil, err
	}
	if !req.HasResponseType(oauth.ResponseTypeToken) && !req.HasResponseType(oauth.ResponseTypeIDToken) {
		return nil, oauth.NewError(oauth.KindAuthorization, "implicit request names no token to issue")
	}

	resp := &oauth.TokenResponse{
		State: req.State,
	}
	if req.HasResponseType(oauth.ResponseTypeToken) {
		if resp.AccessToken, err = s.tokens.CreateAccessToken(ctx, userClaims(user.UserID, user.Email, scopes)); err != nil {
			return nil, err
		}
		resp.TokenType = "bearer"
		resp.ExpiresIn = int(jose.AccessTokenTTL.Seconds())
		resp.Scope = oauth.JoinScopes(scopes)
	}
	if req.IsOpenIDConnect() && req.HasResponseType(oauth.ResponseTypeIDToken) {
		if resp.IDToken, err = s.tokens.CreateIDToken(ctx, client.ClientID, user, req.Nonce, resp.AccessToken, ""); err != nil {
			return nil, err
		}
	}

	s.log.Info("implicit grant issued", logger.ClientID(client.ClientID), logger.UserID(user.UserID))
	return resp, nil
}

func (s *service) AuthorizationCodeGrant(ctx context.Context, auth oauth.ClientAuthorization, rawCode, redirectURI string) (resp *oauth.TokenResponse, err error) {
	client, err := s.authenticateClient(ctx, auth, oauth.GrantAuthorizationCode)
	if err != nil {
		return nil, err
	}
	defer func() {
		metrics.AuthCodeRedemptions.WithLabelValues(metrics.GrantOutcome(err)).Inc()
	}()

	// The binding checks and the removal happen under one lock: a code bound
	// to another client or redirect URI stays cached, and of N matching
	// redemptions exactly one evicts it.
	code, found, evicted := s.codes.EvictIf(rawCode, func(c *oauth.AuthCode) bool {
		return c.ClientID == client.ClientID && c.RedirectURI == redirectURI
	})
	if !found {
		return nil, oauth.NewError(oauth.KindInvalidAuthCode, "authorization code is invalid or expired")
	}
	if !evicted {
		if code.ClientID != client.ClientID {
			return nil, oauth.NewError(oauth.KindInvalidAuthCode, "authorization code was issued to a different client")
		}
		return nil, oauth.NewError(oauth.KindInvalidAuthCode, "redirect_uri does not match the authorization request").WithParam("redirect_uri")
	}

	resp = &oauth.TokenResponse{
		ExpiresIn: int(jose.AccessTokenTTL.Seconds()),
		TokenType: "bearer",
		Scope:     oauth.JoinScopes(code.ResolvedScopes),
	}
	if resp.AccessToken, err = s.tokens.CreateAccessToken(ctx, userClaims(code.User.UserID, code.User.Email, code.ResolvedScopes)); err != nil {
		return nil, err
	}
	if resp.RefreshToken, err = s.tokens.CreateRefreshToken(ctx, resp.AccessToken); err != nil {
		return nil, err
	}
	if code.HasScope(oauth.OpenIDScope) {
		// Hybrid codes carry tokens already; hand those back as issued. An
		// ID token minted here is bound to the redeemed code through c_hash.
		if code.AccessToken != "" {
			resp.AccessToken = code.AccessToken
			resp.RefreshToken = code.RefreshToken
		}
		if code.IDToken != "" {
			resp.IDToken = code.IDToken
		} else if resp.IDToken, err = s.tokens.CreateIDToken(ctx, client.ClientID, code.User, code.Nonce, resp.AccessToken, rawCode); err != nil {
			return nil, err
		}
	}

	s.log.Info("authorization code redeemed", logger.ClientID(client.ClientID), logger.UserID(code.User.UserID))
	return resp, nil
}

func (s *service) ClientCredentialsGrant(ctx context.Context, auth oauth.ClientAuthorization, scope string) (*oauth.TokenResponse, error) {
	client, err := s.authenticateClient(ctx, auth, oauth.GrantClientCredentials)
	if err != nil {
		return nil, err
	}
	if client.ClientSecretHash == "" {
		return nil, oauth.NewError(oauth.KindUnauthorizedClient, "public clients may not use the client_credentials grant")
	}
	scopes, err := s.resolveScopes(ctx, client, oauth.SplitScopes(scope))
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.CreateAccessToken(ctx, userClaims(client.AccountID, "", scopes))
	if err != nil {
		return nil, err
	}

	s.log.Info("client_credentials grant issued", logger.ClientID(client.ClientID))
	return &oauth.TokenResponse{
		AccessToken: access,
		ExpiresIn:   int(jose.AccessTokenTTL.Seconds()),
		TokenType:   "bearer",
		Scope:       oauth.JoinScopes(scopes),
	}, nil
}

func (s *service) PasswordGrant(ctx context.Context, auth oauth.ClientAuthorization, username, plaintext, scope string) (*oauth.TokenResponse, error) {
	client, err := s.authenticateClient(ctx, auth, oauth.GrantPassword)
	if err != nil {
		return nil, err
	}
	user, err := s.authn.Authenticate(ctx, username, plaintext)
	if err != nil {
		return nil, err
	}
	scopes, err := s.resolveScopes(ctx, client, oauth.SplitScopes(scope))
	if err != nil {
		return nil, err
	}

	resp := &oauth.TokenResponse{
		ExpiresIn: int(jose.AccessTokenTTL.Seconds()),
		TokenType: "bearer",
		Scope:     oauth.JoinScopes(scopes),
	}
	if resp.AccessToken, err = s.tokens.CreateAccessToken(ctx, userClaims(user.UserID, user.Email, scopes)); err != nil {
		return nil, err
	}
	if client.IsAuthorizedFor(oauth.GrantRefreshToken) {
		if resp.RefreshToken, err = s.tokens.CreateRefreshToken(ctx, resp.AccessToken); err != nil {
			return nil, err
		}
	}

	s.log.Info("password grant issued", logger.ClientID(client.ClientID), logger.UserID(user.UserID))
	return resp, nil
}

func (s *service) RefreshTokenGrant(ctx context.Context, auth oauth.ClientAuthorization, refreshToken string) (*oauth.TokenResponse, error) {
	client, err := s.authenticateClient(ctx, auth, oauth.GrantRefreshToken)
	if err != nil {
		return nil, err
	}
	if !s.tokens.IsTokenValid(ctx, refreshToken) {
		return nil, oauth.NewError(oauth.KindInvalidRefreshToken, "refresh token is invalid or expired")
	}

	claims := map[string]string{}
	for _, name := range []string{"account_id", "email", "scope"} {
		if v := s.tokens.GetTokenClaim(refreshToken, name); v != "" {
			claims[name] = v
		}
	}
	scope := claims["scope"]

	access, err := s.tokens.CreateAccessToken(ctx, claims)
	if err != nil {
		return nil, err
	}
	rotated, err := s.tokens.CreateRefreshToken(ctx, access)
	if err != nil {
		return nil, err
	}

	s.log.Info("refresh_token grant issued", logger.ClientID(client.ClientID))
	return &oauth.TokenResponse{
		AccessToken:  access,
		RefreshToken: rotated,
		ExpiresIn:    int(jose.AccessTokenTTL.Seconds()),
		TokenType:    "bearer",
		Scope:        scope,
	}, nil
}

// authorizeClient validates the authorize-endpoint preconditions: a known
// client, authorized for the grant, with a redirect URI matching registration.
func (s *service) authorizeClient(ctx context.Context, req oauth.AuthorizationRequest, gt oauth.GrantType) (*repository.Client, error) {
	client, err := s.lookupClient(ctx, req.ClientID, oauth.KindUnknownClient)
	if err != nil {
		return nil, err
	}
	if !client.IsAuthorizedFor(gt) {
		return nil, oauth.NewError(oauth.KindUnauthorizedClient, "client is not authorized for this grant type").WithParam(string(gt))
	}
	if req.RedirectURI == "" {
		return nil, oauth.NewError(oauth.KindUnknownRedirectURI, "redirect_uri is required")
	}
	if !redirectURIRegistered(client.RedirectURIs, req.RedirectURI) {
		return nil, oauth.NewError(oauth.KindUnknownRedirectURI, "redirect_uri is not registered for this client").WithParam("redirect_uri")
	}
	return client, nil
}

// authenticateClient validates token-endpoint client credentials.
func (s *service) authenticateClient(ctx context.Context, auth oauth.ClientAuthorization, gt oauth.GrantType) (*repository.Client, error) {
	if auth.ClientID == "" {
		return nil, oauth.NewError(oauth.KindInvalidClient, "client authentication is required")
	}
	client, err := s.lookupClient(ctx, auth.ClientID, oauth.KindInvalidClient)
	if err != nil {
		return nil, err
	}
	if client.ClientSecretHash != "" && !password.Verify(auth.ClientSecret, client.ClientSecretHash) {
		return nil, oauth.NewError(oauth.KindInvalidClient, "client credentials are invalid")
	}
	if !client.IsAuthorizedFor(gt) {
		return nil, oauth.NewError(oauth.KindUnauthorizedClient, "client is not authorized for this grant type").WithParam(string(gt))
	}
	return client, nil
}

func (s *service) lookupClient(ctx context.Context, clientID string, missingKind oauth.ErrorKind) (*repository.Client, error) {
	client, err := s.clients.GetClientByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, oauth.NewError(missingKind, "unknown client").WithParam(clientID)
		}
		s.log.Error("loading client", logger.ClientID(clientID), logger.Err(err))
		return nil, oauth.NewError(oauth.KindAuthorization, "client could not be loaded").WithCause(err)
	}
	return client, nil
}

// resolveScopes applies the scope policy: an empty request falls back to the
// client's registered default scopes; every explicitly requested scope must
// appear in the system allow-list, and unless that list carries the
// privileged scope the request must also cover the list in full.
func (s *service) resolveScopes(ctx context.Context, client *repository.Client, requested map[string]struct{}) (map[string]struct{}, error) {
	if len(requested) == 0 {
		return oauth.SplitScopes(client.Scope), nil
	}

	allowed, err := s.scopes.GetAllowedScopes(ctx)
	if err != nil {
		s.log.Error("loading allowed scopes", logger.Err(err))
		return nil, oauth.NewError(oauth.KindAuthorization, "allowed scopes could not be loaded").WithCause(err)
	}
	allowSet := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		allowSet[a] = struct{}{}
	}
	for sc := range requested {
		if _, ok := allowSet[sc]; !ok {
			return nil, oauth.NewError(oauth.KindInvalidScope, "scope is not in the allowed scope list").WithParam(sc)
		}
	}

	// The privileged marker waives the request-everything rule below, never
	// the allow-list membership check above.
	if _, ok := allowSet[privilegedScope]; ok {
		return requested, nil
	}
	if !scopesEqual(requested, allowSet) {
		return nil, oauth.NewError(oauth.KindInvalidScope, "every allowed scope must be requested").WithParam(oauth.JoinScopes(requested))
	}
	return requested, nil
}

// matchingCode recognizes an already-pending code for the same client, user
// and request shape, including whether hybrid tokens were attached.
func matchingCode(req oauth.AuthorizationRequest, user oauth.AuthenticatedUser, scopes map[string]struct{}) func(*oauth.AuthCode) bool {
	wantAccess := req.HasResponseType(oauth.ResponseTypeToken)
	wantID := req.IsOpenIDConnect() && req.HasResponseType(oauth.ResponseTypeIDToken)
	return func(c *oauth.AuthCode) bool {
		return c.ClientID == req.ClientID &&
			c.User == user &&
			c.RedirectURI == req.RedirectURI &&
			c.Nonce == req.Nonce &&
			scopesEqual(c.ResolvedScopes, scopes) &&
			(c.AccessToken != "") == wantAccess &&
			(c.IDToken != "") == wantID
	}
}

func scopesEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for s := range a {
		if _, ok := b[s]; !ok {
			return false
		}
	}
	return true
}

func userClaims(accountID int64, email string, scopes map[string]struct{}) map[string]string {
	claims := map[string]string{
		"account_id": strconv.FormatInt(accountID, 10),
		"scope":      oauth.JoinScopes(scopes),
	}
	if email != "" {
		claims["email"] = email
	}
	return claims
}

// redirectURIRegistered matches a requested redirect URI against the client's
// registrations on scheme, host, port and path; query and fragment are
// ignored at issuance time.
func redirectURIRegistered(registered []string, requested string) bool {
	u, err := url.Parse(requested)
	if err != nil {
		return false
	}
	for _, r := range registered {
		ru, err := url.Parse(r)
		if err != nil {
			continue
		}
		if ru.Scheme == u.Scheme && ru.Hostname() == u.Hostname() && ru.Port() == u.Port() && ru.Path == u.Path {
			return true
		}
	}
	return false
}

package oauth

// AuthenticatedUser is the identity carried through a flow once the resource
// owner has been authenticated. Never persisted by the core.
type AuthenticatedUser struct {
	UserID int64
	Email  string
}

// AuthorizationRequest is a bound /oauth/authorize request.
type AuthorizationRequest struct {
	ClientID      string
	RedirectURI   string
	ResponseTypes []ResponseType
	Scopes        map[string]struct{}
	State         string
	Nonce         string
}

// IsOpenIDConnect reports whether the request is an OIDC authentication
// request, signalled by the openid scope.
func (r AuthorizationRequest) IsOpenIDConnect() bool {
	_, ok := r.Scopes[OpenIDScope]
	return ok
}

// HasResponseType reports whether rt was requested.
func (r AuthorizationRequest) HasResponseType(rt ResponseType) bool {
	for _, t := range r.ResponseTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// ClientAuthorization carries the client credentials presented on the token
// endpoint (HTTP Basic or form parameters).
type ClientAuthorization struct {
	ClientID     string
	ClientSecret string
}

// AuthCode is the transient record behind an issued authorization code.
// The pre-minted token fields are only populated for OIDC hybrid requests so
// the exchange step can return them verbatim instead of re-minting.
type AuthCode struct {
	Code           string
	ClientID       string
	ResolvedScopes map[string]struct{}
	RedirectURI    string
	User           AuthenticatedUser
	Nonce          string
	AccessToken    string
	RefreshToken   string
	IDToken        string
}

// HasScope reports whether the code was issued for the given scope.
func (c *AuthCode) HasScope(scope string) bool {
	_, ok := c.ResolvedScopes[scope]
	return ok
}

// TokenResponse is the conceptual token endpoint response body. Fields with
// omitempty are absent from the serialized form when empty, per RFC 6749.
type TokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
	State        string `json:"state,omitempty"`
}

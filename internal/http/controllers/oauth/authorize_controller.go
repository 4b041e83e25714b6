package oauth

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/keystash/keystash/internal/authn"
	"github.com/keystash/keystash/internal/authz"
	"github.com/keystash/keystash/internal/domain/oauth"
	dto "github.com/keystash/keystash/internal/http/dto/oauth"
	"github.com/keystash/keystash/internal/http/helpers"
	"github.com/keystash/keystash/internal/jose"
	"github.com/keystash/keystash/internal/metrics"
	"github.com/keystash/keystash/internal/observability/logger"
)

// AuthorizeController handles GET /oauth/authorize. The resource owner
// authenticates with HTTP Basic credentials; there is no interactive login
// or consent page.
type AuthorizeController struct {
	authz authz.Service
	authn authn.Service
}

func NewAuthorizeController(az authz.Service, an authn.Service) *AuthorizeController {
	return &AuthorizeController{authz: az, authn: an}
}

func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Op("oauth.authorize"))
	q := r.URL.Query()

	responseTypes, unknown := oauth.ParseResponseTypes(q.Get("response_type"))
	if unknown != "" {
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "unknown response_type "+unknown)
		return
	}
	if len(responseTypes) == 0 {
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "response_type is required")
		return
	}

	req := oauth.AuthorizationRequest{
		ClientID:      q.Get("client_id"),
		RedirectURI:   q.Get("redirect_uri"),
		ResponseTypes: responseTypes,
		Scopes:        oauth.SplitScopes(q.Get("scope")),
		State:         q.Get("state"),
		Nonce:         q.Get("nonce"),
	}
	log = log.With(logger.ClientID(req.ClientID))

	email, pass, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="keystash"`)
		writeTokenError(w, http.StatusUnauthorized, "access_denied", "resource owner authentication is required")
		return
	}
	user, err := c.authn.Authenticate(ctx, email, pass)
	if err != nil {
		log.Warn("resource owner authentication failed", logger.Err(err))
		w.Header().Set("WWW-Authenticate", `Basic realm="keystash"`)
		writeTokenError(w, http.StatusUnauthorized, "access_denied", "invalid resource owner credentials")
		return
	}

	wantsCode := req.HasResponseType(oauth.ResponseTypeCode)
	if wantsCode {
		code, err := c.authz.GenerateAuthorizationCode(ctx, req, user)
		if err != nil {
			c.redirectOrRenderError(w, r, req, err, !isHybrid(req))
			return
		}
		c.redirectWithCode(w, r, req, code)
		return
	}

	resp, err := c.authz.ImplicitGrant(ctx, req, user)
	metrics.Grants.WithLabelValues(string(oauth.GrantImplicit), metrics.GrantOutcome(err)).Inc()
	if err != nil {
		c.redirectOrRenderError(w, r, req, err, false)
		return
	}
	c.redirectWithFragment(w, r, req, implicitParams(resp))
}

func isHybrid(req oauth.AuthorizationRequest) bool {
	return req.HasResponseType(oauth.ResponseTypeToken) || req.HasResponseType(oauth.ResponseTypeIDToken)
}

// redirectWithCode sends a plain code back in the query string; hybrid
// responses go in the fragment together with the pre-minted tokens.
func (c *AuthorizeController) redirectWithCode(w http.ResponseWriter, r *http.Request, req oauth.AuthorizationRequest, code *oauth.AuthCode) {
	params := url.Values{}
	params.Set("code", code.Code)
	if req.State != "" {
		params.Set("state", req.State)
	}
	if !isHybrid(req) {
		c.redirectWithQuery(w, r, req, params)
		return
	}
	if code.AccessToken != "" {
		params.Set("access_token", code.AccessToken)
		params.Set("token_type", "bearer")
		params.Set("expires_in", strconv.Itoa(int(jose.AccessTokenTTL.Seconds())))
	}
	if code.IDToken != "" {
		params.Set("id_token", code.IDToken)
	}
	c.redirectWithFragment(w, r, req, params)
}

func implicitParams(resp *oauth.TokenResponse) url.Values {
	params := url.Values{}
	if resp.AccessToken != "" {
		params.Set("access_token", resp.AccessToken)
		params.Set("token_type", resp.TokenType)
		params.Set("expires_in", strconv.Itoa(resp.ExpiresIn))
	}
	if resp.IDToken != "" {
		params.Set("id_token", resp.IDToken)
	}
	if resp.Scope != "" {
		params.Set("scope", resp.Scope)
	}
	if resp.State != "" {
		params.Set("state", resp.State)
	}
	return params
}

func (c *AuthorizeController) redirectWithQuery(w http.ResponseWriter, r *http.Request, req oauth.AuthorizationRequest, params url.Values) {
	target, err := url.Parse(req.RedirectURI)
	if err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not a valid URL")
		return
	}
	q := target.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (c *AuthorizeController) redirectWithFragment(w http.ResponseWriter, r *http.Request, req oauth.AuthorizationRequest, params url.Values) {
	target, err := url.Parse(req.RedirectURI)
	if err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not a valid URL")
		return
	}
	target.Fragment = ""
	target.RawFragment = ""
	http.Redirect(w, r, target.String()+"#"+params.Encode(), http.StatusFound)
}

// redirectOrRenderError follows RFC 6749 §4.1.2.1: failures that invalidate
// the client or redirect URI render locally; everything else redirects back
// to the client with an error code.
func (c *AuthorizeController) redirectOrRenderError(w http.ResponseWriter, r *http.Request, req oauth.AuthorizationRequest, err error, useQuery bool) {
	log := logger.From(r.Context())
	oerr, ok := oauth.AsError(err)
	if !ok {
		log.Error("authorize failed", logger.Err(err))
		writeTokenError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	log.Warn("authorize rejected", logger.Err(err))

	switch oerr.Kind {
	case oauth.KindUnknownClient, oauth.KindUnknownRedirectURI:
		helpers.WriteJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: oerr.OAuth2Code(), Description: oerr.Description})
		return
	}
	if oerr.IsServerError() {
		writeTokenError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	params := url.Values{}
	params.Set("error", oerr.OAuth2Code())
	params.Set("error_description", oerr.Description)
	if req.State != "" {
		params.Set("state", req.State)
	}
	if useQuery {
		c.redirectWithQuery(w, r, req, params)
		return
	}
	c.redirectWithFragment(w, r, req, params)
}

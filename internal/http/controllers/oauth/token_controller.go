// Package oauth implements the /oauth/authorize and /oauth/token endpoints.
package oauth

import (
	"net/http"
	"strings"

	"github.com/keystash/keystash/internal/authz"
	"github.com/keystash/keystash/internal/domain/oauth"
	dto "github.com/keystash/keystash/internal/http/dto/oauth"
	"github.com/keystash/keystash/internal/http/helpers"
	"github.com/keystash/keystash/internal/metrics"
	"github.com/keystash/keystash/internal/observability/logger"
)

// TokenController handles POST /oauth/token.
type TokenController struct {
	authz authz.Service
}

func NewTokenController(s authz.Service) *TokenController {
	return &TokenController{authz: s}
}

func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Op("oauth.token"))

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "request body is not a valid form")
		return
	}

	grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))
	gt, ok := oauth.ParseGrantType(grantType)
	if !ok || gt == oauth.GrantImplicit {
		writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "unsupported grant_type "+grantType)
		return
	}
	log = log.With(logger.GrantType(grantType))
	auth := helpers.ClientAuthorization(r)

	var resp *oauth.TokenResponse
	var err error
	switch gt {
	case oauth.GrantAuthorizationCode:
		resp, err = c.authz.AuthorizationCodeGrant(ctx, auth, r.PostForm.Get("code"), r.PostForm.Get("redirect_uri"))
	case oauth.GrantClientCredentials:
		resp, err = c.authz.ClientCredentialsGrant(ctx, auth, r.PostForm.Get("scope"))
	case oauth.GrantPassword:
		resp, err = c.authz.PasswordGrant(ctx, auth, r.PostForm.Get("username"), r.PostForm.Get("password"), r.PostForm.Get("scope"))
	case oauth.GrantRefreshToken:
		resp, err = c.authz.RefreshTokenGrant(ctx, auth, r.PostForm.Get("refresh_token"))
	}
	metrics.Grants.WithLabelValues(grantType, metrics.GrantOutcome(err)).Inc()

	if err != nil {
		oerr, ok := oauth.AsError(err)
		if !ok {
			log.Error("token grant failed", logger.Err(err))
			writeTokenError(w, http.StatusInternalServerError, "server_error", "")
			return
		}
		log.Warn("token grant rejected", logger.Err(err))
		switch {
		case oerr.IsServerError():
			writeTokenError(w, http.StatusInternalServerError, oerr.OAuth2Code(), "")
		case oerr.OAuth2Code() == "invalid_client":
			w.Header().Set("WWW-Authenticate", `Basic realm="keystash"`)
			writeTokenError(w, http.StatusUnauthorized, oerr.OAuth2Code(), oerr.Description)
		default:
			writeTokenError(w, http.StatusBadRequest, oerr.OAuth2Code(), oerr.Description)
		}
		return
	}

	// The token endpoint never echoes state.
	resp.State = ""
	helpers.WriteJSON(w, http.StatusOK, resp)
}

func writeTokenError(w http.ResponseWriter, status int, code, description string) {
	helpers.WriteJSON(w, status, dto.ErrorResponse{Error: code, Description: description})
}

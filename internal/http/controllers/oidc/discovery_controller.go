// Package oidc serves the OpenID Connect discovery and JWKS documents.
package oidc

import (
	"net/http"

	"github.com/keystash/keystash/internal/domain/repository"
	"github.com/keystash/keystash/internal/http/helpers"
	"github.com/keystash/keystash/internal/jose"
	"github.com/keystash/keystash/internal/observability/logger"
)

type discoveryDocument struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported,omitempty"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
}

// DiscoveryController handles GET /.well-known/openid-configuration.
type DiscoveryController struct {
	issuer string
	scopes repository.ScopeDao
}

func NewDiscoveryController(issuer string, scopes repository.ScopeDao) *DiscoveryController {
	return &DiscoveryController{issuer: issuer, scopes: scopes}
}

func (c *DiscoveryController) Discovery(w http.ResponseWriter, r *http.Request) {
	doc := discoveryDocument{
		Issuer:                c.issuer,
		AuthorizationEndpoint: c.issuer + "/oauth/authorize",
		TokenEndpoint:         c.issuer + "/oauth/token",
		JWKSURI:               c.issuer + "/.well-known/jwks.json",
		ResponseTypesSupported: []string{
			"code", "token", "id_token",
			"code id_token", "code token", "code id_token token", "id_token token",
		},
		GrantTypesSupported: []string{
			"authorization_code", "implicit", "client_credentials", "password", "refresh_token",
		},
		SubjectTypesSupported:            []string{"pairwise"},
		IDTokenSigningAlgValuesSupported: []string{"HS256", "RS256"},
		TokenEndpointAuthMethods:         []string{"client_secret_basic", "client_secret_post"},
	}
	if scopes, err := c.scopes.GetAllowedScopes(r.Context()); err == nil {
		doc.ScopesSupported = scopes
	} else {
		logger.From(r.Context()).Warn("loading scopes for discovery", logger.Err(err))
	}

	helpers.WriteJSON(w, http.StatusOK, doc)
}

// JWKSController handles GET /.well-known/jwks.json.
type JWKSController struct {
	keys *jose.KeyManager
}

func NewJWKSController(keys *jose.KeyManager) *JWKSController {
	return &JWKSController{keys: keys}
}

func (c *JWKSController) JWKS(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, jose.JWKS(r.Context(), c.keys))
}

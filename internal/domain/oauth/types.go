// Package oauth contains the value types shared by the authorization core:
// grant and response types, authorization requests, authorization codes and
// token responses. Nothing in this package touches persistence or transport.
package oauth

import (
	"sort"
	"strings"
)

// GrantType is an OAuth2 flow variant a client may be authorized for.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantImplicit          GrantType = "implicit"
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantRefreshToken      GrantType = "refresh_token"
)

// ParseGrantType maps the wire value to a known grant type.
func ParseGrantType(s string) (GrantType, bool) {
	switch GrantType(strings.ToLower(strings.TrimSpace(s))) {
	case GrantAuthorizationCode:
		return GrantAuthorizationCode, true
	case GrantImplicit:
		return GrantImplicit, true
	case GrantClientCredentials:
		return GrantClientCredentials, true
	case GrantPassword:
		return GrantPassword, true
	case GrantRefreshToken:
		return GrantRefreshToken, true
	}
	return "", false
}

// ResponseType is a value of the authorize endpoint's response_type parameter.
// OIDC hybrid requests carry more than one.
type ResponseType string

const (
	ResponseTypeCode    ResponseType = "code"
	ResponseTypeToken   ResponseType = "token"
	ResponseTypeIDToken ResponseType = "id_token"
)

// ParseResponseTypes splits a space-separated response_type value.
// Unknown entries are reported so the web layer can reject the request.
func ParseResponseTypes(s string) ([]ResponseType, string) {
	var out []ResponseType
	for _, f := range strings.Fields(s) {
		switch ResponseType(f) {
		case ResponseTypeCode, ResponseTypeToken, ResponseTypeIDToken:
			out = append(out, ResponseType(f))
		default:
			return nil, f
		}
	}
	return out, ""
}

// OpenIDScope marks a request as an OIDC authentication request.
const OpenIDScope = "openid"

// SplitScopes parses a space- or comma-separated scope string into a set.
func SplitScopes(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' }) {
		if f != "" {
			out[f] = struct{}{}
		}
	}
	return out
}

// JoinScopes renders a scope set space-separated, sorted for stable output.
func JoinScopes(scopes map[string]struct{}) string {
	if len(scopes) == 0 {
		return ""
	}
	list := make([]string, 0, len(scopes))
	for s := range scopes {
		list = append(list, s)
	}
	sort.Strings(list)
	return strings.Join(list, " ")
}

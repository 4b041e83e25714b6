// Package helpers has the small response and client-credential utilities
// shared by the controllers.
package helpers

import (
	"encoding/json"
	"net/http"

	"github.com/keystash/keystash/internal/domain/oauth"
)

// WriteJSON serializes v with the no-store headers token responses require.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ClientAuthorization extracts client credentials from HTTP Basic auth,
// falling back to the client_id/client_secret form parameters. The form must
// already be parsed.
func ClientAuthorization(r *http.Request) oauth.ClientAuthorization {
	if id, secret, ok := r.BasicAuth(); ok {
		return oauth.ClientAuthorization{ClientID: id, ClientSecret: secret}
	}
	return oauth.ClientAuthorization{
		ClientID:     r.PostForm.Get("client_id"),
		ClientSecret: r.PostForm.Get("client_secret"),
	}
}

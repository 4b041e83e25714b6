// Package oauth holds the wire DTOs of the OAuth2 endpoints.
package oauth

// ErrorResponse is the RFC 6749 error body of the token endpoint.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

package oauth

import "fmt"

// ErrorKind identifies the failure class. Client kinds mean the request itself
// was invalid and must not be retried; server kinds mean the server could not
// fulfil an otherwise valid request.
type ErrorKind string

const (
	// Client errors.
	KindUnknownClient       ErrorKind = "unknown_client"
	KindUnauthorizedClient  ErrorKind = "unauthorized_client"
	KindUnknownRedirectURI  ErrorKind = "unknown_redirect_uri"
	KindInvalidScope        ErrorKind = "invalid_scope"
	KindInvalidClient       ErrorKind = "invalid_client"
	KindInvalidAuthCode     ErrorKind = "invalid_authorization_code"
	KindInvalidRefreshToken ErrorKind = "invalid_refresh_token"
	KindInvalidUser         ErrorKind = "invalid_user"

	// Server errors.
	KindSigningKey    ErrorKind = "signing_key"
	KindToken         ErrorKind = "token"
	KindAuthorization ErrorKind = "authorization"
)

// Error is the structured failure the core hands the web layer: a kind, a
// human description, the offending parameter when one exists, and the redirect
// URI to send authorize-endpoint errors back to when it is known valid.
type Error struct {
	Kind        ErrorKind
	Description string
	Param       string
	RedirectURI string
	cause       error
}

func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Description, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

func (e *Error) Unwrap() error { return e.cause }

// IsServerError reports whether the failure belongs to the server taxonomy.
func (e *Error) IsServerError() bool {
	switch e.Kind {
	case KindSigningKey, KindToken, KindAuthorization:
		return true
	}
	return false
}

// OAuth2Code maps the kind to the RFC 6749 / OIDC Core error code the HTTP
// layer must emit.
func (e *Error) OAuth2Code() string {
	switch e.Kind {
	case KindUnknownClient, KindInvalidClient:
		return "invalid_client"
	case KindUnauthorizedClient:
		return "unauthorized_client"
	case KindUnknownRedirectURI:
		return "invalid_request"
	case KindInvalidScope:
		return "invalid_scope"
	case KindInvalidAuthCode, KindInvalidRefreshToken:
		return "invalid_grant"
	case KindInvalidUser:
		return "invalid_grant"
	default:
		return "server_error"
	}
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, description string) *Error {
	return &Error{Kind: kind, Description: description}
}

// WithParam attaches the offending parameter value.
func (e *Error) WithParam(param string) *Error {
	e.Param = param
	return e
}

// WithRedirectURI attaches a validated redirect URI for error redirection.
func (e *Error) WithRedirectURI(uri string) *Error {
	e.RedirectURI = uri
	return e
}

// WithCause attaches the underlying error for wrapping.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// AsError extracts an *Error from err, if it is one.
func AsError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

package common

// AuthorizationHeaderName is the HTTP header carrying the access token.
const AuthorizationHeaderName = "Authorization"

// Accepted schemes of the Authorization header. "Token" keeps the
// format older API clients already send.
const (
	TokenScheme  = "Token"
	BearerScheme = "Bearer"
)

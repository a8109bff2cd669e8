package auth

import "github.com/vidtube/backend/internal/apperr"

// credentialMessage is the only thing clients learn about a rejected token.
const credentialMessage = "invalid credential"

func credentialError(reason string) *apperr.Error {
	return &apperr.Error{Kind: apperr.KindUnauthorized, Message: credentialMessage, Reason: reason}
}

var (
	// ErrTokenMissing indicates no token was presented.
	ErrTokenMissing = credentialError("token missing")
	// ErrTokenInvalid covers malformed tokens, bad signatures and tokens of the wrong class.
	ErrTokenInvalid = credentialError("token invalid")
	// ErrTokenExpired indicates the token expiry has elapsed.
	ErrTokenExpired = credentialError("token expired")
	// ErrTokenStale indicates a refresh token no longer occupies its identity's session slot.
	ErrTokenStale = credentialError("refresh token stale")
	// ErrIdentityMissing indicates the token subject no longer exists.
	ErrIdentityMissing = credentialError("identity missing")

	// ErrInvalidCredentials is returned for unknown accounts and wrong passwords alike.
	ErrInvalidCredentials = &apperr.Error{Kind: apperr.KindUnauthorized, Message: "invalid credentials"}
	// ErrInvalidUserID rejects token issuance for an empty subject.
	ErrInvalidUserID = apperr.Validation("user id must be provided")
)

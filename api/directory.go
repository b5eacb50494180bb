package api

import (
	"context"
	"errors"
)

// ErrInvalidCredentials is returned by a Directory when the username is
// unknown or the password does not match. The two cases are deliberately
// indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUnknownUser is returned by Directory.Lookup for a user that no longer
// exists.
var ErrUnknownUser = errors.New("unknown user")

// Principal is an authenticated user.
type Principal struct {
	UserID string
	Admin  bool
}

// Directory resolves users. Account management lives outside this service.
type Directory interface {
	// Authenticate verifies a username and password.
	Authenticate(ctx context.Context, username, password string) (Principal, error)
	// Lookup returns the current principal for a user id.
	Lookup(ctx context.Context, userID string) (Principal, error)
}

package session

import (
	"github.com/ashley-ai/sentinel/internal/util"
)

// tokenBytes is the entropy of a bearer token (256 bits).
const tokenBytes = 32

// NewToken returns a fresh base64url bearer token.
func NewToken() (string, error) {
	return util.RandomToken(tokenBytes)
}

// HashToken returns the hex SHA-256 digest stored in place of token.
func HashToken(token string) string {
	return util.SHA256Hex([]byte(token))
}

package creds

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoToken is returned when the authorization header is missing or does
// not carry a bearer token.
var ErrNoToken = errors.New("no auth token provided")

// BearerToken extracts the raw token from an "Authorization: Bearer xxx"
// header value.
func BearerToken(authorization string) (string, error) {
	token := strings.TrimPrefix(authorization, "Bearer ")
	if token == authorization || token == "" {
		return "", ErrNoToken
	}

	return token, nil
}

// SubjectFromToken reads the "sub" claim from a JWT's payload segment. The
// signature is NOT verified here; see the package documentation.
func SubjectFromToken(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed token: expected 3 segments, got %d", len(parts))
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed token payload: %w", err)
	}

	var claims struct {
		Sub string `json:"sub"`
	}

	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("malformed token claims: %w", err)
	}

	if claims.Sub == "" {
		return "", errors.New("token has no sub claim")
	}

	return claims.Sub, nil
}

// decodeSegment accepts both unpadded base64url (the JWT encoding) and
// standard base64, which some issuers emit.
func decodeSegment(segment string) ([]byte, error) {
	if raw, err := base64.RawURLEncoding.DecodeString(segment); err == nil {
		return raw, nil
	}

	return base64.StdEncoding.DecodeString(segment)
}

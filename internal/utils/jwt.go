package utils

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var errInvalidAuthorizationHeader = errors.New("invalid authorization header")

// ParseBearerToken extracts the token portion of an "Authorization: Bearer
// <token>" header value. Returns an error when the header is missing or
// malformed.
func ParseBearerToken(value string) (string, error) {
	parts := strings.Split(strings.TrimSpace(value), " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errInvalidAuthorizationHeader
	}
	return parts[1], nil
}

// ParseUserIDFromJWT extracts the "sub" claim from a JWT without verifying
// its signature. Signature verification is the identity provider's concern;
// the registry only needs the subject to route targeted messages, and an
// unparsable token simply yields an anonymous connection.
func ParseUserIDFromJWT(tokenString string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("empty token subject")
	}
	return sub, nil
}

// Package auth consumes verified identities. Token issuance belongs to an
// external collaborator; this package only validates and unpacks what it is
// handed.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller attached to every request and
// connection.
type Identity struct {
	UserID      string
	DisplayName string
	Avatar      string
}

// Claims is the token payload shape agreed with the identity provider.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies the signature and expiry of a JWT issued
// by the identity provider.
func ValidateToken(secret []byte, tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return Identity{}, jwt.ErrSignatureInvalid
	}
	return Identity{
		UserID:      claims.UserID,
		DisplayName: claims.DisplayName,
		Avatar:      claims.Avatar,
	}, nil
}

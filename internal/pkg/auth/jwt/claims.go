package jwt

import "github.com/golang-jwt/jwt"

// RoleAdmin is the only role accepted by the admin surface.
const RoleAdmin = "admin"

// Payload defines the JWT claims carried by admin bearer tokens.
type Payload struct {
	// StandardClaims embeds Exp, Iat, Iss and Sub.
	jwt.StandardClaims

	// Role must equal RoleAdmin for the admin routes to accept the token.
	Role string `json:"role"`
}

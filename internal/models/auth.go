package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the JWT claims carried by a session token
type SessionClaims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Elevated reports whether the principal holds administrative capability,
// which doubles the effective idle-session timeout.
func (c *SessionClaims) Elevated() bool {
	return c.Role == "admin"
}

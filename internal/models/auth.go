package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the platform roles recognised by the engine.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleStudent UserRole = "STUDENT"
)

// JWTClaims represents the identity attached to every authenticated request.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor is the caller of a core operation.
type Actor struct {
	UserID string
	Role   UserRole
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ActorFromClaims converts verified token claims into an Actor.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	role := claims.Role
	if role == "" {
		role = RoleStudent
	}
	return Actor{UserID: claims.UserID, Role: role}
}

package models

import (
	"github.com/golang-jwt/jwt/v4"
)

// CustomClaims is carried by player join tokens and operator tokens.
type CustomClaims struct {
	jwt.RegisteredClaims
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

const RoleOperator = "operator"

package handlers

import (
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/mapleleafu/cardarena/arena-backend/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
)

// IdentityResolver turns auth credentials into an Identity.
type IdentityResolver interface {
	Resolve(req models.AuthRequest) (models.Identity, error)
}

// TokenResolver trusts the raw credentials when no secret is configured.
// With a secret, a signed token is mandatory and its id and username claims
// take precedence over the raw fields.
type TokenResolver struct {
	Secret []byte
}

func (r TokenResolver) Resolve(req models.AuthRequest) (models.Identity, error) {
	identity := models.Identity{
		ID:         req.ID,
		Name:       req.Name,
		UnlockHash: req.UnlockHash,
		Stakes:     maps.Clone(req.Stakes),
	}
	if identity.Stakes == nil {
		identity.Stakes = map[string]int{}
	}

	if len(r.Secret) == 0 {
		if identity.ID == "" {
			return models.Identity{}, responses.BadRequestError{Msg: "id is required"}
		}
		return identity, nil
	}

	if req.Token == "" {
		return models.Identity{}, responses.UnauthorizedError{Msg: "token is required", Drop: true}
	}
	claims, err := ValidateToken(req.Token, r.Secret)
	if err != nil {
		return models.Identity{}, responses.UnauthorizedError{Msg: "invalid token", Drop: true}
	}
	if claims.ID == "" {
		return models.Identity{}, responses.UnauthorizedError{Msg: "token has no id", Drop: true}
	}
	identity.ID = claims.ID
	if claims.Username != "" {
		identity.Name = claims.Username
	}
	return identity, nil
}

func ValidateToken(tokenStr string, secret []byte) (*models.CustomClaims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET not set")
	}

	claims := &models.CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// IssueToken signs claims for id with the given role and lifetime.
func IssueToken(secret []byte, id, username, role string, ttl time.Duration) (string, error) {
	claims := models.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		ID:       id,
		Username: username,
		Role:     role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// CheckOperatorPassword compares password with the configured bcrypt hash.
func CheckOperatorPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

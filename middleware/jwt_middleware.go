package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/mapleleafu/cardarena/arena-backend/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
	"github.com/mapleleafu/cardarena/arena-backend/utils"
)

type contextKey string

const authInfoKey contextKey = "authInfo"

// AuthInfo returns the claims stored by JWTValidationMiddleware.
func AuthInfo(ctx context.Context) (*models.CustomClaims, bool) {
	claims, ok := ctx.Value(authInfoKey).(*models.CustomClaims)
	return claims, ok
}

// JWTValidationMiddleware admits requests carrying a valid bearer token. A
// non-empty role must also match the token's role claim.
func JWTValidationMiddleware(secret []byte, role string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := r.Header.Get("Authorization")
			tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")

			if len(secret) == 0 || tokenStr == "" {
				utils.HandleError(w, "auth", responses.UnauthorizedError{Msg: "Your token is invalid or expired. Please log in again."})
				return
			}

			keyFunc := func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrInvalidKey
				}
				return secret, nil
			}

			token, err := jwt.ParseWithClaims(tokenStr, &models.CustomClaims{}, keyFunc)
			if err != nil || !token.Valid {
				utils.HandleError(w, "auth", responses.UnauthorizedError{Msg: "Your token is invalid or expired. Please log in again."})
				return
			}

			authInfo, ok := token.Claims.(*models.CustomClaims)
			if !ok {
				utils.HandleError(w, "auth", responses.InternalServerError{Msg: "Error processing request."})
				return
			}
			if role != "" && authInfo.Role != role {
				utils.HandleError(w, "auth", responses.UnauthorizedError{Msg: "Insufficient permissions."})
				return
			}

			// Store the claims in the context
			ctx := context.WithValue(r.Context(), authInfoKey, authInfo)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

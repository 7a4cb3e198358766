package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/mapleleafu/cardarena/arena-backend/models"
)

var testSecret = []byte("test-secret")

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, role string, ttl time.Duration) string {
	t.Helper()
	claims := models.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl))},
		ID:               "p1",
		Username:         "Jimbo",
		Role:             role,
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestJWTValidationMiddleware(t *testing.T) {
	var seen *models.CustomClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AuthInfo(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		secret []byte
		role   string
		token  string
		want   int
	}{
		{name: "no token", secret: testSecret, want: http.StatusUnauthorized},
		{name: "garbage", secret: testSecret, token: "not-a-jwt", want: http.StatusUnauthorized},
		{name: "expired", secret: testSecret, token: sign(t, jwt.SigningMethodHS256, testSecret, "", -time.Minute), want: http.StatusUnauthorized},
		{name: "wrong key", secret: testSecret, token: sign(t, jwt.SigningMethodHS256, []byte("other"), "", time.Hour), want: http.StatusUnauthorized},
		{name: "no secret configured", token: sign(t, jwt.SigningMethodHS256, testSecret, "", time.Hour), want: http.StatusUnauthorized},
		{name: "player", secret: testSecret, token: sign(t, jwt.SigningMethodHS256, testSecret, "", time.Hour), want: http.StatusNoContent},
		{name: "player on operator route", secret: testSecret, role: models.RoleOperator, token: sign(t, jwt.SigningMethodHS256, testSecret, "", time.Hour), want: http.StatusUnauthorized},
		{name: "operator", secret: testSecret, role: models.RoleOperator, token: sign(t, jwt.SigningMethodHS256, testSecret, models.RoleOperator, time.Hour), want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			JWTValidationMiddleware(tt.secret, tt.role)(next).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && (seen == nil || seen.ID != "p1") {
				t.Fatalf("claims not stored: %+v", seen)
			}
		})
	}
}

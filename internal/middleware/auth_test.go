package middleware

import (
	"asset-management-api/internal/config"
	"asset-management-api/internal/model"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(id uuid.UUID, role model.Role) Claims {
	return Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			Issuer:    "asset-management-api",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newTestAuth() *AuthMiddleware {
	return NewAuthMiddleware(&config.AuthConfig{JWTSecret: testSecret, Issuer: "asset-management-api"}, log.New(io.Discard, "", 0))
}

func TestAuthenticate(t *testing.T) {
	userID := uuid.New()
	expired := validClaims(userID, model.RoleMember)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := validClaims(userID, model.RoleMember)
	wrongIssuer.Issuer = "someone-else"
	badSubject := validClaims(userID, model.RoleMember)
	badSubject.Subject = "not-a-uuid"

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(userID, model.RoleOwner)), wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims(userID, model.RoleMember)), wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired), wantStatus: http.StatusUnauthorized},
		{name: "wrong issuer", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer), wantStatus: http.StatusUnauthorized},
		{name: "bad subject", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), badSubject), wantStatus: http.StatusUnauthorized},
		{name: "unknown role", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(userID, model.Role("root"))), wantStatus: http.StatusUnauthorized},
		{name: "unsigned", header: "Bearer " + signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims(userID, model.RoleAdmin)), wantStatus: http.StatusUnauthorized},
	}

	auth := newTestAuth()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen bool
			handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				actor, ok := ActorFromContext(r.Context())
				require.True(t, ok)
				assert.Equal(t, userID, actor.ID)
				assert.Equal(t, model.RoleOwner, actor.Role)
				seen = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/asset", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, seen)
			if tt.wantStatus != http.StatusOK {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, "UNAUTHORIZED", body["code"])
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	gate := RequireRole(model.RoleAdmin, model.RolePurchaser)(ok)

	tests := []struct {
		name       string
		role       model.Role
		anonymous  bool
		wantStatus int
	}{
		{name: "admin", role: model.RoleAdmin, wantStatus: http.StatusNoContent},
		{name: "purchaser", role: model.RolePurchaser, wantStatus: http.StatusNoContent},
		{name: "member", role: model.RoleMember, wantStatus: http.StatusForbidden},
		{name: "anonymous", anonymous: true, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/asset", nil)
			if !tt.anonymous {
				req = req.WithContext(WithActor(req.Context(), actorWithRole(tt.role)))
			}
			rr := httptest.NewRecorder()
			gate.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

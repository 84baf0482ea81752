package middleware

import (
	"asset-management-api/internal/config"
	"asset-management-api/internal/model"
	"asset-management-api/internal/service"
	"asset-management-api/pkg/errors"
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

type contextKey string

const actorKey contextKey = "actor"

// Claims are the bearer token claims. The subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies HMAC-signed bearer tokens. Tokens are issued
// elsewhere; this service only checks them.
type AuthMiddleware struct {
	secret []byte
	issuer string
	logger *log.Logger
}

// NewAuthMiddleware creates a new auth middleware with the given config
func NewAuthMiddleware(cfg *config.AuthConfig, logger *log.Logger) *AuthMiddleware {
	if logger == nil {
		logger = log.Default()
	}
	return &AuthMiddleware{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		logger: logger,
	}
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller in the request context.
func (am *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, errors.UnauthorizedError("missing or invalid Authorization header"))
			return
		}

		actor, err := am.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			am.logger.Printf("SECURITY: Token rejected for %s %s: %v", r.Method, r.URL.Path, err)
			writeError(w, errors.UnauthorizedError("invalid or expired token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// ParseToken verifies the token signature, expiry and issuer and returns the
// caller it names.
func (am *AuthMiddleware) ParseToken(tokenString string) (service.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return am.secret, nil
	})
	if err != nil {
		return service.Actor{}, err
	}
	if !token.Valid {
		return service.Actor{}, fmt.Errorf("token is not valid")
	}

	if am.issuer != "" && !claims.VerifyIssuer(am.issuer, true) {
		return service.Actor{}, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return service.Actor{}, fmt.Errorf("invalid subject %q: %w", claims.Subject, err)
	}
	role := model.Role(claims.Role)
	if !role.Valid() {
		return service.Actor{}, fmt.Errorf("unknown role %q", claims.Role)
	}

	return service.Actor{ID: id, Role: role}, nil
}

// RequireRole allows the request through only when the caller holds one of
// the given roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				writeError(w, errors.UnauthorizedError("authentication required"))
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, errors.ForbiddenError(fmt.Sprintf("role %s may not perform this action", actor.Role)))
		})
	}
}

// WithActor returns a copy of ctx carrying the caller
func WithActor(ctx context.Context, actor service.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the authenticated caller, if any
func ActorFromContext(ctx context.Context) (service.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(service.Actor)
	return actor, ok
}

func writeError(w http.ResponseWriter, appErr *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.GetHTTPStatus())
	w.Write(appErr.ToJSON())
}

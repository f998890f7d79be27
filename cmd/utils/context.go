package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const (
	ActorKey     contextKey = "actor"
	RequestIDKey contextKey = "requestID"
)

var ErrNoActor = errors.New("actor not found in context")

// Claims is the bearer token payload issued by the identity service.
// Subject carries the user id; consultants also carry their consultant id.
type Claims struct {
	jwt.RegisteredClaims
	Role         string `json:"role"`
	ConsultantID *uint  `json:"consultant_id,omitempty"`
}

// Actor maps the claims onto the caller identity used by the services.
func (c *Claims) Actor() (models.Actor, error) {
	role := models.Role(c.Role)
	if role == "" {
		role = models.RoleUser
	}

	switch role {
	case models.RoleConsultant:
		if c.ConsultantID == nil || *c.ConsultantID == 0 {
			return models.Actor{}, errors.New("consultant token without consultant_id")
		}
		return models.Actor{ID: *c.ConsultantID, Role: role}, nil
	case models.RoleUser, models.RoleAdmin:
		id, err := strconv.ParseUint(c.Subject, 10, 64)
		if err != nil || id == 0 {
			return models.Actor{}, fmt.Errorf("invalid subject %q", c.Subject)
		}
		return models.Actor{ID: uint(id), Role: role}, nil
	}
	return models.Actor{}, fmt.Errorf("role %q cannot call the API", c.Role)
}

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

func ActorFromContext(ctx context.Context) (models.Actor, error) {
	actor, ok := ctx.Value(ActorKey).(models.Actor)
	if !ok {
		return models.Actor{}, ErrNoActor
	}
	return actor, nil
}

func GetActorFromRequest(r *http.Request) (models.Actor, error) {
	return ActorFromContext(r.Context())
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// AuthMiddleware validates the HMAC bearer token and stores the caller's
// Actor on the request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			// Browsers cannot set headers on a websocket handshake.
			if tokenString == "" && isWebsocketUpgrade(r) {
				tokenString = r.URL.Query().Get("token")
			}
			if tokenString == "" {
				WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized", "Authorization header required")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
				return
			}

			actor, err := claims.Actor()
			if err != nil {
				WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// SignToken mints a token in the format AuthMiddleware accepts. Only the
// identity service issues tokens in production; tooling and tests use this.
func SignToken(secret string, actor models.Actor, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(actor.Role),
	}
	if actor.Role == models.RoleConsultant {
		id := actor.ID
		claims.ConsultantID = &id
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Package middleware provides HTTP middleware for the restopos API.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"restopos/internal/core/apperror"
	appctx "restopos/internal/core/context"
)

// HeaderActorID names the acting user when a trusted gateway terminates authentication.
const HeaderActorID = "X-Actor-ID"

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth middleware validates JWT tokens and populates user context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		user, err := validator.ValidateToken(tokenString)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// TrustedActor attributes requests to the X-Actor-ID header. It is used when
// no JWT secret is configured and an upstream gateway authenticates callers.
func TrustedActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := strings.TrimSpace(c.GetHeader(HeaderActorID)); actor != "" {
			setUser(c, &appctx.UserContext{UserID: actor})
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// WebsocketAuth also accepts the token query parameter; browsers cannot set
// headers on websocket upgrades.
func WebsocketAuth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			abortUnauthorized(c, "missing token")
			return
		}
		user, err := validator.ValidateToken(tokenString)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		setUser(c, user)
		c.Next()
	}
}

func setUser(c *gin.Context, user *appctx.UserContext) {
	ctx := appctx.WithUser(c.Request.Context(), user)
	c.Request = c.Request.WithContext(ctx)
	c.Set("user_id", user.UserID)
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}

// Package middleware provides HTTP middleware for the donations service.
package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sahayog/ms-go-donations/app/types"
)

const userIDContextKey = "session_user_id"

// SessionAuth validates HMAC-signed bearer tokens of the form
// "<userID>:<unixExpiry>:<signature>". The secret is explicit configuration;
// there is no ambient token storage anywhere in the service.
type SessionAuth struct {
	secretKey []byte
}

func NewSessionAuth(secret string) *SessionAuth {
	return &SessionAuth{secretKey: []byte(secret)}
}

// IssueToken signs a session token for the given user id.
func (a *SessionAuth) IssueToken(userID string, ttl time.Duration) string {
	expiry := strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)
	payload := userID + ":" + expiry
	return payload + ":" + a.sign(payload)
}

// RequireSession rejects requests without a valid bearer session token and
// stores the user id on the echo context for handlers.
func (a *SessionAuth) RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderAuthorization))
			token := strings.TrimPrefix(header, "Bearer ")
			userID, ok := a.parseToken(strings.TrimSpace(token))
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "invalid or expired session"})
			}
			ctx.Set(userIDContextKey, userID)
			return next(ctx)
		}
	}
}

// UserID returns the authenticated user id set by RequireSession.
func UserID(ctx echo.Context) string {
	if v, ok := ctx.Get(userIDContextKey).(string); ok {
		return v
	}
	return ""
}

func (a *SessionAuth) parseToken(token string) (string, bool) {
	if len(a.secretKey) == 0 || token == "" {
		return "", false
	}

	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", false
	}
	userID, expiryRaw, signature := parts[0], parts[1], parts[2]

	expiry, err := strconv.ParseInt(expiryRaw, 10, 64)
	if err != nil || time.Now().Unix() > expiry {
		return "", false
	}

	expected := a.sign(userID + ":" + expiryRaw)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", false
	}

	return userID, true
}

func (a *SessionAuth) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

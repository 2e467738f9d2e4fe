package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Benwil1/latest-copy-sub000/logging"
)

// UserIDKey is the key type for storing user ID in context
type UserIDKey string

// UserIDKeyValue constant for context
const UserIDKeyValue UserIDKey = "userID"

const userIDKey = UserIDKeyValue

var errNoUserClaim = errors.New("token has no user claim")

// authenticate verifies the bearer token and stores the caller's id in the
// request context. Tokens are issued elsewhere.
func authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			userID, err := parseToken(secret, tokenStr)
			if err != nil {
				logging.Ctx(r.Context()).Debug().Err(err).Msg("rejected token")
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads the Authorization header; websocket upgrades may pass
// ?token= instead since browsers cannot set headers on them.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// parseToken validates an HS256 token and returns its user id, taken from
// "sub" or the legacy numeric "user_id" claim.
func parseToken(secret []byte, tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errNoUserClaim
	}
	if sub, _ := claims.GetSubject(); strings.TrimSpace(sub) != "" {
		return strings.TrimSpace(sub), nil
	}
	switch v := claims["user_id"].(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	}
	return "", errNoUserClaim
}

// signToken issues a token for userID. Used by the seed command and tests.
func signToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	s, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func currentUser(r *http.Request) string {
	return userFromContext(r.Context())
}

// userFromContext returns the id stored by authenticate, or "".
func userFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

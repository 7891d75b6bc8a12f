// Package middleware provides authentication and authorization middleware for the application.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Token claim values shared by the token issuer and the verifiers.
const (
	TokenIssuer   = "inkwell-api"
	TokenAudience = "inkwell-client"
)

// AccessClaims is the identity carried by a verified bearer token.
type AccessClaims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("Authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("Invalid authorization header format")
	}
	return parts[1], nil
}

// ParseAccessToken validates signature, expiry, issuer and audience and
// returns the subject and username claims.
func ParseAccessToken(tokenString, secret string) (*AccessClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
	)
	if err != nil || !token.Valid {
		return nil, errors.New("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("Invalid token claims")
	}

	subStr, ok := claims["sub"].(string)
	if !ok {
		return nil, errors.New("Invalid token structure - missing subject")
	}
	userIDVal, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil {
		return nil, errors.New("Invalid user ID in token")
	}

	username, _ := claims["username"].(string)
	if username == "" {
		return nil, errors.New("Invalid token structure - missing username")
	}
	jti, _ := claims["jti"].(string)

	out := &AccessClaims{UserID: uint(userIDVal), Username: username, JTI: jti}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// SetIdentity stores the verified identity in Fiber locals and the request context.
func SetIdentity(c *fiber.Ctx, claims *AccessClaims) {
	c.Locals("userID", claims.UserID)
	c.Locals("username", claims.Username)
	ctx := context.WithValue(c.UserContext(), UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UsernameKey, claims.Username)
	c.SetUserContext(ctx)
}

// TokenVerifier checks a bearer token and returns the identity it carries.
type TokenVerifier func(ctx context.Context, token string) (*AccessClaims, error)

// StaticVerifier verifies tokens against secret without a revocation check.
func StaticVerifier(secret string) TokenVerifier {
	return func(_ context.Context, token string) (*AccessClaims, error) {
		return ParseAccessToken(token, secret)
	}
}

// RequireAuth rejects requests without a valid bearer token. The verified
// claims are stored in locals under "claims".
func RequireAuth(verify TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := BearerToken(c.Get("Authorization"))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(err.Error()))
		}

		claims, err := verify(c.UserContext(), tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(err.Error()))
		}

		SetIdentity(c, claims)
		c.Locals("claims", claims)
		return c.Next()
	}
}

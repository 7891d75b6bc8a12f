package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTTL        = 7 * 24 * time.Hour
	blacklistPrefix = "blacklist:"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.identityService.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return c.Status(fiber.StatusCreated).JSON(tokenResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.identityService.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return c.JSON(tokenResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (s *Server) Logout(c *fiber.Ctx) error {
	s.revokeToken(c.UserContext(), currentClaims(c))
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// AuthRequired verifies the bearer token and rejects revoked ones.
func (s *Server) AuthRequired() fiber.Handler {
	return middleware.RequireAuth(s.verifyToken)
}

// optionalUser returns the caller's username when a valid token is present,
// or "" for anonymous requests.
func (s *Server) optionalUser(c *fiber.Ctx) string {
	tokenString, err := middleware.BearerToken(c.Get("Authorization"))
	if err != nil {
		return ""
	}
	claims, err := s.verifyToken(c.UserContext(), tokenString)
	if err != nil {
		return ""
	}
	middleware.SetIdentity(c, claims)
	return claims.Username
}

func (s *Server) verifyToken(ctx context.Context, tokenString string) (*middleware.AccessClaims, error) {
	claims, err := middleware.ParseAccessToken(tokenString, s.config.JWTSecret)
	if err != nil {
		return nil, err
	}
	if claims.JTI != "" && s.redis != nil {
		revoked, err := s.redis.Exists(ctx, blacklistPrefix+claims.JTI).Result()
		if err == nil && revoked > 0 {
			return nil, errors.New("Token has been revoked")
		}
	}
	return claims, nil
}

// revokeToken blacklists the token's jti until it would have expired.
func (s *Server) revokeToken(ctx context.Context, claims *middleware.AccessClaims) {
	if claims == nil || claims.JTI == "" {
		return
	}
	if s.redis == nil {
		middleware.Logger.WarnContext(ctx, "token revocation skipped: redis unavailable",
			slog.String("username", claims.Username))
		return
	}
	ttl := time.Until(claims.ExpiresAt)
	if claims.ExpiresAt.IsZero() || ttl > tokenTTL {
		ttl = tokenTTL
	}
	if ttl <= 0 {
		return
	}
	if err := s.redis.Set(ctx, blacklistPrefix+claims.JTI, claims.Username, ttl).Err(); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to revoke token",
			slog.String("username", claims.Username),
			slog.String("error", err.Error()))
	}
}

// generateToken creates a JWT token for the given user ID and username
func (s *Server) generateToken(userID uint, username string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      middleware.TokenIssuer,
		"aud":      middleware.TokenAudience,
		"exp":      now.Add(tokenTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func validClaims(userID uint, username string, exp time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      time.Now().Add(exp).Unix(),
	}
}

func TestAuthRequired(t *testing.T) {
	app := fiber.New()

	app.Get("/test", RequireAuth(StaticVerifier(testSecret)), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"userID":   c.Locals("userID"),
			"username": c.Locals("username"),
		})
	})

	wrongIssuer := validClaims(1, "alice", time.Hour)
	wrongIssuer["iss"] = "someone-else"
	noUsername := validClaims(1, "", time.Hour)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID uint
	}{
		{
			name:           "Happy Path",
			authHeader:     "Bearer " + signTestToken(t, validClaims(123, "alice", time.Hour)),
			expectedStatus: http.StatusOK,
			expectedUserID: 123,
		},
		{name: "Missing Header", expectedStatus: http.StatusUnauthorized},
		{name: "Invalid Format", authHeader: "Basic dXNlcjpwYXNz", expectedStatus: http.StatusUnauthorized},
		{name: "Malformed Token", authHeader: "Bearer malformed.token.here", expectedStatus: http.StatusUnauthorized},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + signTestToken(t, validClaims(123, "alice", -time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Issuer",
			authHeader:     "Bearer " + signTestToken(t, wrongIssuer),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Username",
			authHeader:     "Bearer " + signTestToken(t, noUsername),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, float64(tt.expectedUserID), body["userID"])
				assert.Equal(t, "alice", body["username"])
				return
			}
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "UNAUTHORIZED", body["code"])
		})
	}
}

func TestRequireAuth_RevokedToken(t *testing.T) {
	revoked := errors.New("Token has been revoked")
	verify := func(ctx context.Context, token string) (*AccessClaims, error) {
		claims, err := StaticVerifier(testSecret)(ctx, token)
		if err != nil {
			return nil, err
		}
		if claims.JTI == "gone" {
			return nil, revoked
		}
		return claims, nil
	}

	app := fiber.New()
	app.Get("/test", RequireAuth(verify), func(c *fiber.Ctx) error {
		claims := c.Locals("claims").(*AccessClaims)
		return c.SendString(claims.JTI)
	})

	for jti, status := range map[string]int{"kept": http.StatusOK, "gone": http.StatusUnauthorized} {
		claims := validClaims(7, "alice", time.Hour)
		claims["jti"] = jti
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, claims))

		resp, err := app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, status, resp.StatusCode, jti)
	}
}

func TestParseAccessToken_ExpiresAt(t *testing.T) {
	claims, err := ParseAccessToken(signTestToken(t, validClaims(1, "alice", time.Hour)), testSecret)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = BearerToken("")
	assert.Error(t, err)
	_, err = BearerToken("Bearer")
	assert.Error(t, err)
}

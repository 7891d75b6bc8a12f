package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger
	Logger = NewLogger(&buf, "production", "debug")
	t.Cleanup(func() { Logger = prev })
	return &buf
}

func TestNewLogger_Formats(t *testing.T) {
	var text, js bytes.Buffer
	NewLogger(&text, "development", "").Info("hello")
	NewLogger(&js, "production", "").Info("hello")

	assert.Contains(t, text.String(), "msg=hello")
	assert.True(t, json.Valid(bytes.TrimSpace(js.Bytes())))

	var quiet bytes.Buffer
	NewLogger(&quiet, "production", "warn").Info("dropped")
	assert.Empty(t, quiet.String())
}

func TestStructuredLogger(t *testing.T) {
	buf := captureLogger(t)

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(ContextMiddleware())
	app.Use(StructuredLogger())
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/api/posts/:id", func(c *fiber.Ctx) error {
		SetIdentity(c, &AccessClaims{UserID: 7, Username: "alice"})
		return c.Status(fiber.StatusNotFound).SendString("missing")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Empty(t, buf.String(), "health probes are not logged")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/posts/hello-world", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, float64(404), line["status"])
	assert.Equal(t, "/api/posts/:id", line["route"])
	assert.Equal(t, "alice", line["username"])
	assert.NotEmpty(t, line["request_id"])
}

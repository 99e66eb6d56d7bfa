package serverutils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, secret, userID, sessionID string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":        userID,
		"session_id": sessionID,
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newGuardedApp(secret string) *fiber.App {
	app := fiber.New()
	app.Get("/who", JwtMiddleware(secret), func(ctx *fiber.Ctx) error {
		userID, _ := ctx.Locals("user_id").(string)
		sessionID, _ := ctx.Locals("session_id").(string)
		return ctx.JSON(fiber.Map{"user_id": userID, "session_id": sessionID})
	})
	return app
}

func TestJwtMiddlewareAcceptsTokenSignedWithConfiguredSecret(t *testing.T) {
	app := newGuardedApp("configured-secret")
	token := mintToken(t, "configured-secret", "user@example.com", "sess-1")

	req := httptest.NewRequest("GET", "/who", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJwtMiddlewareRejectsTokenSignedWithOtherSecret(t *testing.T) {
	app := newGuardedApp("configured-secret")
	token := mintToken(t, "a-different-secret", "user@example.com", "sess-1")

	req := httptest.NewRequest("GET", "/who", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJwtMiddlewareRejectsMissingBearer(t *testing.T) {
	app := newGuardedApp("configured-secret")

	req := httptest.NewRequest("GET", "/who", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

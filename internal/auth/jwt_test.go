package auth

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour, 24*time.Hour)
	id := uuid.NewString()

	token, err := m.GenerateAccessToken(id, "ada@example.com", "", "https://cdn/avatar.png")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: id, Handle: "ada", AvatarURL: "https://cdn/avatar.png"}, claims.Identity())
}

func TestExpiredAndForeignTokens(t *testing.T) {
	expired := NewJWTManager("secret", -time.Minute, time.Hour)
	token, err := expired.GenerateAccessToken(uuid.NewString(), "a@b.c", "a", "")
	require.NoError(t, err)

	_, err = expired.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	other := NewJWTManager("other-secret", time.Hour, time.Hour)
	good, err := other.GenerateAccessToken(uuid.NewString(), "a@b.c", "a", "")
	require.NoError(t, err)
	_, err = NewJWTManager("secret", time.Hour, time.Hour).ValidateAccessToken(good)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken(t *testing.T) {
	m := NewJWTManager("secret", time.Hour, time.Hour)
	id := uuid.NewString()

	token, err := m.GenerateRefreshToken(id)
	require.NoError(t, err)

	got, err := m.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestAuthMiddleware(t *testing.T) {
	m := NewJWTManager("secret", time.Hour, time.Hour)
	app := fiber.New()
	app.Get("/me", AuthMiddleware(m), func(c *fiber.Ctx) error {
		claims, err := GetClaimsFromContext(c)
		if err != nil {
			return err
		}
		return c.SendString(claims.Identity().Handle)
	})

	token, err := m.GenerateAccessToken(uuid.NewString(), "grace@example.com", "grace", "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "missing", status: fiber.StatusUnauthorized},
		{name: "malformed header", header: "Token " + token, status: fiber.StatusUnauthorized},
		{name: "bearer", header: "Bearer " + token, status: fiber.StatusOK},
		{name: "query", query: "?token=" + token, status: fiber.StatusOK},
		{name: "garbage", header: "Bearer nope", status: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == fiber.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, "grace", string(body))
			}
		})
	}
}

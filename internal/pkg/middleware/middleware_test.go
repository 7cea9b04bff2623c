package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/logging"
	"github.com/ManuelReschke/Bizdir/internal/pkg/usercontext"
)

type stubUsers struct {
	byHash map[string]*models.User
	err    error
}

func (s stubUsers) GetByAPIKeyHash(_ context.Context, hash string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.byHash[hash]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestApp(users UserLookup, guards ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers := append([]fiber.Handler{APIKeyAuthMiddleware(users, logging.Discard())}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetUserContext(c))
	})
	app.Get("/", handlers...)
	return app
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	owner := &models.User{ID: 3, Name: "Ada", Role: models.ROLE_OWNER, Status: models.STATUS_ACTIVE}
	disabled := &models.User{ID: 4, Name: "Old", Role: models.ROLE_OWNER, Status: models.STATUS_DISABLED}
	users := stubUsers{byHash: map[string]*models.User{
		models.HashAPIKey("bzd_owner"):    owner,
		models.HashAPIKey("bzd_disabled"): disabled,
	}}
	app := newTestApp(users)

	tests := []struct {
		name   string
		header map[string]string
		status int
	}{
		{"missing", nil, fiber.StatusUnauthorized},
		{"unknown", map[string]string{"X-API-Key": "bzd_nope"}, fiber.StatusUnauthorized},
		{"disabled", map[string]string{"X-API-Key": "bzd_disabled"}, fiber.StatusForbidden},
		{"header", map[string]string{"X-API-Key": "bzd_owner"}, fiber.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer bzd_owner"}, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAPIKeyAuthMiddlewareLookupFailure(t *testing.T) {
	app := newTestApp(stubUsers{err: errors.New("db down")})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-API-Key", "bzd_owner")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestRequireAdminAPI(t *testing.T) {
	users := stubUsers{byHash: map[string]*models.User{
		models.HashAPIKey("bzd_owner"): {ID: 3, Role: models.ROLE_OWNER, Status: models.STATUS_ACTIVE},
		models.HashAPIKey("bzd_admin"): {ID: 1, Role: models.ROLE_ADMIN, Status: models.STATUS_ACTIVE},
	}}
	app := newTestApp(users, RequireAPIAuth, RequireAdminAPI)

	for key, status := range map[string]int{"bzd_owner": fiber.StatusForbidden, "bzd_admin": fiber.StatusOK} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-API-Key", key)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode, key)
	}
}

func TestRequireAPIAuthWithoutUser(t *testing.T) {
	app := fiber.New()
	app.Get("/", RequireAPIAuth, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

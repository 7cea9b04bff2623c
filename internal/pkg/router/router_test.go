package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/app/controllers"
	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/logging"
)

type noUsers struct{}

func (noUsers) GetByAPIKeyHash(context.Context, string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func TestLimiterConfigFollowsCacheClient(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "cache.internal:6380", Password: "s3cret"})
	defer client.Close()

	cfg := limiterConfig(client)
	assert.Equal(t, "cache.internal", cfg.Host)
	assert.Equal(t, 6380, cfg.Port)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.Equal(t, limiterDatabase, cfg.Database)

	def := limiterConfig(nil)
	assert.Equal(t, "localhost", def.Host)
	assert.Equal(t, 6379, def.Port)
}

func TestLimiterStorageRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	storage := NewLimiterStorage(client)
	defer storage.Close()

	require.NoError(t, storage.Set("limiter:1.2.3.4", []byte("3"), time.Minute))
	got, err := storage.Get("limiter:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
}

func TestInstallRouter(t *testing.T) {
	app := fiber.New()
	InstallRouter(app, Deps{
		Controllers: controllers.New(controllers.Dependencies{Log: logging.Discard()}),
		Users:       noUsers{},
		Log:         logging.Discard(),
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/plan-transitions", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/listings/expire", nil)
	req.Header.Set("X-API-Key", "bzd_unknown")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestApiRateLimit(t *testing.T) {
	app := fiber.New()
	InstallRouter(app, Deps{
		Controllers: controllers.New(controllers.Dependencies{Log: logging.Discard()}),
		Users:       noUsers{},
		Log:         logging.Discard(),
	})

	var last int
	for i := 0; i < 121; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		require.NoError(t, err, strconv.Itoa(i))
		last = resp.StatusCode
	}
	assert.Equal(t, fiber.StatusTooManyRequests, last)
}
